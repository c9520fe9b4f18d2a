package rules

import (
	"fmt"
	"strings"

	f "iacsift/internal/features"
	"iacsift/internal/resource"
)

var (
	buckets     = []resource.Kind{resource.KindStorageBucket}
	databases   = []resource.Kind{resource.KindManagedDatabase}
	dataBearing = kindsWhere(resource.Kind.IsDataBearing)
)

func kindsWhere(keep func(resource.Kind) bool) []resource.Kind {
	var out []resource.Kind
	for _, k := range resource.KnownKinds {
		if keep(k) {
			out = append(out, k)
		}
	}
	return out
}

// MinBackupRetentionDays is the retention below which IAC-BAK-001 fires
const MinBackupRetentionDays = 7

// ModelRuleID identifies the finding attached when only the learned model
// considers a resource risky
const ModelRuleID = "MODEL-001"

// ModelFinding is the finding attached when the blended score crosses the
// decision threshold without any rule firing
func ModelFinding() Finding {
	return Finding{
		RuleID:               ModelRuleID,
		Severity:             Medium,
		Message:              "Learned model rates this configuration as risky",
		ContributingFeatures: []string{},
		Remediation:          "Review the resource against the feature vector; no individual rule matched",
	}
}

// ThresholdRuleID identifies the finding attached when the rule score alone
// reaches the decision threshold without any rule firing, which only happens
// with a zero threshold
const ThresholdRuleID = "SCORE-001"

// ThresholdFinding is the finding attached instead of ModelFinding when no
// model score contributed to the risk
func ThresholdFinding() Finding {
	return Finding{
		RuleID:               ThresholdRuleID,
		Severity:             Info,
		Message:              "Risk score meets the decision threshold although no rule matched",
		ContributingFeatures: []string{},
		Remediation:          "Raise the decision threshold above zero or enable a learned model",
	}
}

func isTrue(name string) func(v f.Vector) bool {
	return func(v f.Vector) bool { return v.Bool(name) }
}

func isFalse(name string) func(v f.Vector) bool {
	return func(v f.Vector) bool { return !v.Bool(name) }
}

func partialTags(v f.Vector) bool {
	q := v.Number(f.TagQualityScore)
	return q > 0 && q < 1
}

func exposedPorts(v f.Vector) string {
	return strings.ReplaceAll(v.Enum(f.ExposedAdminPort), ",", ", ")
}

func init() {
	mustRegister(
		Rule{
			ID:          "IAC-PUB-001",
			Title:       "Resource is publicly accessible",
			Severity:    High,
			Features:    []string{f.PublicAccess},
			Predicate:   isTrue(f.PublicAccess),
			Remediation: `Remove public ACLs, public IPs and open-world sources, for example acl = "private"`,
		},
		Rule{
			ID:          "IAC-PUB-002",
			Title:       "Publicly accessible resource appears to hold sensitive data",
			Severity:    Critical,
			Features:    []string{f.PublicAccess, f.SensitiveNaming},
			Predicate:   func(v f.Vector) bool { return v.Bool(f.PublicAccess) && v.Bool(f.SensitiveNaming) },
			Remediation: "Make the resource private immediately and review who accessed it",
		},
		Rule{
			ID:        "IAC-NET-001",
			Title:     "Administrative or database port open to the internet",
			Severity:  Critical,
			Features:  []string{f.ExposedAdminPort, f.PublicAccess},
			Predicate: func(v f.Vector) bool { return v.Enum(f.ExposedAdminPort) != "none" },
			Message: func(v f.Vector) string {
				return fmt.Sprintf("Port(s) %s reachable from 0.0.0.0/0", exposedPorts(v))
			},
			Remediation: "Restrict the source CIDR to known networks or use a bastion/VPN",
		},
		Rule{
			ID:        "IAC-ENC-001",
			Title:     "Encryption at rest is not enabled",
			Severity:  Medium,
			Kinds:     dataBearing,
			Features:  []string{f.EncryptionEnabled},
			Predicate: isFalse(f.EncryptionEnabled),
			Remediation: `Enable server-side encryption, for example
server_side_encryption_configuration {
  rule {
    apply_server_side_encryption_by_default {
      sse_algorithm = "AES256"
    }
  }
}`,
		},
		Rule{
			ID:          "IAC-ENC-002",
			Title:       "Sensitive data stored without encryption",
			Severity:    High,
			Kinds:       dataBearing,
			Features:    []string{f.EncryptionEnabled, f.SensitiveNaming},
			Predicate:   func(v f.Vector) bool { return !v.Bool(f.EncryptionEnabled) && v.Bool(f.SensitiveNaming) },
			Remediation: "Encrypt the resource with a customer managed KMS key",
		},
		Rule{
			ID:        "IAC-VER-001",
			Title:     "Versioning is not enabled",
			Severity:  Low,
			Kinds:     buckets,
			Features:  []string{f.VersioningEnabled},
			Predicate: isFalse(f.VersioningEnabled),
			Remediation: `Enable versioning for data protection
versioning {
  enabled = true
}`,
		},
		Rule{
			ID:          "IAC-LOG-001",
			Title:       "Access logging is not configured",
			Severity:    Low,
			Kinds:       []resource.Kind{resource.KindStorageBucket, resource.KindManagedDatabase},
			Features:    []string{f.LoggingEnabled},
			Predicate:   isFalse(f.LoggingEnabled),
			Remediation: "Configure an access log target such as a logging bucket or log exports",
		},
		Rule{
			ID:          "IAC-MFA-001",
			Title:       "MFA delete is not enabled on a versioned bucket",
			Severity:    Info,
			Kinds:       buckets,
			Features:    []string{f.MFADeleteRequired, f.VersioningEnabled},
			Predicate:   func(v f.Vector) bool { return v.Bool(f.VersioningEnabled) && !v.Bool(f.MFADeleteRequired) },
			Remediation: "Set mfa_delete = true in the versioning configuration",
		},
		Rule{
			ID:          "IAC-LCY-001",
			Title:       "No lifecycle policy configured",
			Severity:    Info,
			Kinds:       buckets,
			Features:    []string{f.LifecyclePolicyPresent},
			Predicate:   isFalse(f.LifecyclePolicyPresent),
			Remediation: "Add a lifecycle rule to expire or archive old objects",
		},
		Rule{
			ID:          "IAC-CORS-001",
			Title:       "CORS allows any origin or method",
			Severity:    Medium,
			Features:    []string{f.CORSWildcard},
			Predicate:   isTrue(f.CORSWildcard),
			Remediation: "List the allowed origins and methods explicitly",
		},
		Rule{
			ID:          "IAC-SEC-001",
			Title:       "Hardcoded credential in configuration",
			Severity:    Critical,
			Features:    []string{f.HardcodedSecretPresent},
			Predicate:   isTrue(f.HardcodedSecretPresent),
			Remediation: "Move the value to a secret store and reference it, for example a variable or Secrets Manager",
		},
		Rule{
			ID:          "IAC-IAM-001",
			Title:       "Identity policy grants wildcard administrative permissions",
			Severity:    Critical,
			Features:    []string{f.AdminWildcardPermission},
			Predicate:   isTrue(f.AdminWildcardPermission),
			Remediation: "Grant only the actions and resources the principal needs",
		},
		Rule{
			ID:          "IAC-TAG-001",
			Title:       "Required tags are missing",
			Severity:    Low,
			Features:    []string{f.HasTags},
			Predicate:   isFalse(f.HasTags),
			Remediation: "Tag the resource with Environment, Owner and Purpose",
		},
		Rule{
			ID:        "IAC-TAG-002",
			Title:     "Some required tags are missing",
			Severity:  Info,
			Features:  []string{f.TagQualityScore},
			Predicate: partialTags,
			Message: func(v f.Vector) string {
				return fmt.Sprintf("Only %.0f%% of required tags are present", v.Number(f.TagQualityScore)*100)
			},
			Remediation: "Add the remaining required tags",
		},
		Rule{
			ID:        "IAC-BAK-001",
			Title:     "Backup retention is too short",
			Severity:  Low,
			Kinds:     databases,
			Features:  []string{f.BackupRetentionDays},
			Predicate: func(v f.Vector) bool { return v.Number(f.BackupRetentionDays) < MinBackupRetentionDays },
			Message: func(v f.Vector) string {
				return fmt.Sprintf("Backups are kept for %.0f day(s), fewer than %d", v.Number(f.BackupRetentionDays), MinBackupRetentionDays)
			},
			Remediation: fmt.Sprintf("Set backup_retention_period to at least %d", MinBackupRetentionDays),
		},
		Rule{
			ID:          "IAC-WEB-001",
			Title:       "Static website hosting is enabled",
			Severity:    Info,
			Kinds:       buckets,
			Features:    []string{f.WebsiteHostingEnabled},
			Predicate:   isTrue(f.WebsiteHostingEnabled),
			Remediation: "Confirm the bucket is meant to serve public content, or front it with a CDN",
		},
	)
}
