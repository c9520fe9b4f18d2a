package features

import (
	"strings"

	"iacsift/internal/resource"
)

// encryptionFlags are boolean attributes that switch at-rest encryption on
var encryptionFlags = [][]string{
	{"storage_encrypted"},
	{"encrypted"},
	{"server_side_encryption", "enabled"},
	{"infrastructure_encryption_enabled"},
	{"transparent_data_encryption_enabled"},
	{"encryption_at_host_enabled"},
	{"at_rest_encryption_enabled"},
}

// encryptionKeys are attributes whose presence configures encryption with a
// specific key or algorithm
var encryptionKeys = [][]string{
	{"server_side_encryption_configuration", "rule", "apply_server_side_encryption_by_default", "sse_algorithm"},
	{"kms_key_id"},
	{"kms_key_arn"},
	{"encryption_key_name"},
	{"disk_encryption_set_id"},
	{"disk_encryption_key"},
	{"encryption", "default_kms_key_name"},
	{"customer_managed_key"},
}

func encryptionEnabled(d *resource.Declaration) bool {
	for _, path := range encryptionFlags {
		if d.Get(path...).True() {
			return true
		}
	}
	for _, path := range encryptionKeys {
		if d.Get(path...).IsPresent() {
			return true
		}
	}

	// compute instances encrypt through their root device
	roots := d.Blocks("root_block_device")
	if len(roots) == 0 {
		return false
	}
	for _, blk := range append(roots, d.Blocks("ebs_block_device")...) {
		if !blk.Get("encrypted").True() {
			return false
		}
	}
	return true
}

func enabledStatus(l resource.Lookup) bool {
	if l.True() {
		return true
	}
	s, ok := l.String()
	return ok && strings.EqualFold(s, "Enabled")
}

func versioningEnabled(d *resource.Declaration) bool {
	return enabledStatus(d.Get("versioning", "enabled")) ||
		enabledStatus(d.Get("versioning", "status")) ||
		enabledStatus(d.Get("versioning_configuration", "status")) ||
		d.Get("blob_properties", "versioning_enabled").True()
}

func loggingEnabled(d *resource.Declaration) bool {
	for _, path := range [][]string{
		{"logging", "target_bucket"},
		{"logging", "log_bucket"},
		{"enabled_cloudwatch_logs_exports"},
		{"logging_config", "log_destination"},
		{"audit_log_destination"},
	} {
		if d.Get(path...).IsPresent() {
			return true
		}
	}
	return false
}

func mfaDelete(d *resource.Declaration) bool {
	if !versioningEnabled(d) {
		return false
	}
	return enabledStatus(d.Get("versioning", "mfa_delete")) ||
		enabledStatus(d.Get("versioning_configuration", "mfa_delete"))
}

func lifecyclePresent(d *resource.Declaration) bool {
	root := d.Attributes()
	rules := append(root.Blocks("lifecycle_rule"), root.BlocksAt("lifecycle_configuration", "rule")...)
	for _, rule := range rules {
		enabled := rule.Get("enabled")
		status := rule.Get("status")
		if enabled.IsPresent() && !enabled.True() {
			continue
		}
		if s, ok := status.String(); ok && !strings.EqualFold(s, "Enabled") {
			continue
		}
		return true
	}
	return false
}

func backupRetention(d *resource.Declaration) float64 {
	for _, key := range []string{
		"backup_retention_period",
		"backup_retention_days",
		"automated_snapshot_retention_period",
		"snapshot_retention_limit",
	} {
		if n, ok := d.Get(key).Number(); ok {
			return n
		}
	}
	if n, ok := d.Get("settings", "backup_configuration", "backup_retention_settings", "retained_backups").Number(); ok {
		return n
	}
	// DynamoDB point-in-time recovery keeps 35 days
	if d.Get("point_in_time_recovery", "enabled").True() {
		return 35
	}
	return 0
}

func websiteHosting(d *resource.Declaration) bool {
	return d.Get("website").IsDeclared() || d.Get("static_website").IsDeclared()
}

func init() {
	mustRegister(
		&extractor{
			name:        EncryptionEnabled,
			description: "At-rest encryption is explicitly enabled",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(encryptionEnabled(d))
			},
		},
		&extractor{
			name:        VersioningEnabled,
			description: "Object versioning is explicitly enabled",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(versioningEnabled(d))
			},
		},
		&extractor{
			name:        LoggingEnabled,
			description: "An access or audit logging target is configured",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(loggingEnabled(d))
			},
		},
		&extractor{
			name:        MFADeleteRequired,
			description: "MFA delete is enabled on a versioned resource",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(mfaDelete(d))
			},
		},
		&extractor{
			name:        LifecyclePolicyPresent,
			description: "An expiration or archival rule is configured",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(lifecyclePresent(d))
			},
		},
		&extractor{
			name:        BackupRetentionDays,
			description: "Automated backup retention in days, 0 when not configured",
			def:         Number(0),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Number(backupRetention(d))
			},
		},
		&extractor{
			name:        WebsiteHostingEnabled,
			description: "Static website hosting is configured",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(websiteHosting(d))
			},
		},
	)
}
