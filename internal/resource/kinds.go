package resource

import "strings"

// Kind is the canonical resource category the extractors and rules reason about
type Kind string

const (
	KindStorageBucket     Kind = "storage-bucket"
	KindManagedDatabase   Kind = "managed-database"
	KindComputeInstance   Kind = "compute-instance"
	KindBlockVolume       Kind = "block-volume"
	KindNetworkRuleSet    Kind = "network-rule-set"
	KindIdentityPolicy    Kind = "identity-policy"
	KindIdentityPrincipal Kind = "identity-principal"
	KindUnknown           Kind = "unknown"
)

// KnownKinds lists every canonical kind except KindUnknown
var KnownKinds = []Kind{
	KindStorageBucket,
	KindManagedDatabase,
	KindComputeInstance,
	KindBlockVolume,
	KindNetworkRuleSet,
	KindIdentityPolicy,
	KindIdentityPrincipal,
}

// providerTypes maps provider resource types onto canonical kinds
var providerTypes = map[string]Kind{
	// AWS
	"aws_s3_bucket":                       KindStorageBucket,
	"aws_db_instance":                     KindManagedDatabase,
	"aws_rds_cluster":                     KindManagedDatabase,
	"aws_redshift_cluster":                KindManagedDatabase,
	"aws_dynamodb_table":                  KindManagedDatabase,
	"aws_docdb_cluster":                   KindManagedDatabase,
	"aws_elasticache_replication_group":   KindManagedDatabase,
	"aws_instance":                        KindComputeInstance,
	"aws_launch_template":                 KindComputeInstance,
	"aws_launch_configuration":            KindComputeInstance,
	"aws_ebs_volume":                      KindBlockVolume,
	"aws_security_group":                  KindNetworkRuleSet,
	"aws_security_group_rule":             KindNetworkRuleSet,
	"aws_vpc_security_group_ingress_rule": KindNetworkRuleSet,
	"aws_network_acl":                     KindNetworkRuleSet,
	"aws_iam_policy":                      KindIdentityPolicy,
	"aws_iam_role_policy":                 KindIdentityPolicy,
	"aws_iam_user_policy":                 KindIdentityPolicy,
	"aws_iam_group_policy":                KindIdentityPolicy,
	"aws_iam_role_policy_attachment":      KindIdentityPolicy,
	"aws_iam_user_policy_attachment":      KindIdentityPolicy,
	"aws_iam_group_policy_attachment":     KindIdentityPolicy,
	"aws_iam_policy_document":             KindIdentityPolicy,
	"aws_s3_bucket_policy":                KindIdentityPolicy,
	"aws_iam_user":                        KindIdentityPrincipal,
	"aws_iam_role":                        KindIdentityPrincipal,

	// GCP
	"google_storage_bucket":            KindStorageBucket,
	"google_sql_database_instance":     KindManagedDatabase,
	"google_compute_instance":          KindComputeInstance,
	"google_compute_disk":              KindBlockVolume,
	"google_compute_firewall":          KindNetworkRuleSet,
	"google_project_iam_member":        KindIdentityPolicy,
	"google_project_iam_binding":       KindIdentityPolicy,
	"google_storage_bucket_iam_member": KindIdentityPolicy,
	"google_service_account":           KindIdentityPrincipal,

	// Azure
	"azurerm_storage_account":         KindStorageBucket,
	"azurerm_storage_container":       KindStorageBucket,
	"azurerm_mssql_server":            KindManagedDatabase,
	"azurerm_postgresql_server":       KindManagedDatabase,
	"azurerm_mysql_server":            KindManagedDatabase,
	"azurerm_cosmosdb_account":        KindManagedDatabase,
	"azurerm_linux_virtual_machine":   KindComputeInstance,
	"azurerm_windows_virtual_machine": KindComputeInstance,
	"azurerm_managed_disk":            KindBlockVolume,
	"azurerm_network_security_group":  KindNetworkRuleSet,
	"azurerm_network_security_rule":   KindNetworkRuleSet,
	"azurerm_role_assignment":         KindIdentityPolicy,
	"azurerm_user_assigned_identity":  KindIdentityPrincipal,
}

// ResolveKind maps either a canonical kind name or a provider resource type
// onto a Kind. The second return value is false for unrecognised input.
func ResolveKind(typ string) (Kind, bool) {
	t := strings.TrimSpace(typ)
	for _, k := range KnownKinds {
		if string(k) == t {
			return k, true
		}
	}
	if k, ok := providerTypes[strings.ToLower(t)]; ok {
		return k, true
	}
	return KindUnknown, false
}

// IsDataBearing reports whether resources of this kind hold data at rest
func (k Kind) IsDataBearing() bool {
	switch k {
	case KindStorageBucket, KindManagedDatabase, KindComputeInstance, KindBlockVolume:
		return true
	}
	return false
}
