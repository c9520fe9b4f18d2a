package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"iacsift/internal/logging"
)

// EnvPrefix prefixes every environment variable override, e.g.
// IACSIFT_SCORING_DECISION_THRESHOLD
const EnvPrefix = "IACSIFT"

// flagNames maps config keys to the CLI flags that override them
var flagNames = map[string]string{
	"aws.profile":                "profile",
	"app.max_workers":            "max-workers",
	"app.log_format":             "log-format",
	"app.log_level":              "log-level",
	"scoring.decision_threshold": "threshold",
	"scoring.blend_weight":       "blend-weight",
	"scoring.max_findings":       "max-findings",
	"scoring.model_timeout":      "model-timeout",
	"model.provider":             "model-provider",
	"model.path":                 "model-path",
	"model.endpoint":             "model-endpoint",
	"output.format":              "output-format",
	"output.destination":         "output",
	"output.dir":                 "output-dir",
	"output.bucket":              "bucket",
	"output.bucket_region":       "bucket-region",
	"output.fail_on_risky":       "fail-on-risky",
}

// FlagName returns the CLI flag bound to key
func FlagName(key string) string {
	if name, ok := flagNames[key]; ok {
		return name
	}
	return strings.ReplaceAll(strings.ReplaceAll(key, ".", "-"), "_", "-")
}

// SetDefaults registers the default value of every setting on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("aws.profile", "default")

	v.SetDefault("app.max_workers", runtime.NumCPU())
	v.SetDefault("app.log_format", "text")
	v.SetDefault("app.log_level", "INFO")

	v.SetDefault("scoring.decision_threshold", 0.5)
	v.SetDefault("scoring.blend_weight", 0.5)
	v.SetDefault("scoring.sensitive_keywords", []string{
		"secret", "financial", "customer", "personal", "pii",
		"payment", "credential", "password", "confidential", "backup",
	})
	v.SetDefault("scoring.required_tags", []string{"Environment", "Owner", "Purpose"})
	v.SetDefault("scoring.max_findings", 0)
	v.SetDefault("scoring.model_timeout", "2s")

	v.SetDefault("model.provider", ProviderNone)
	v.SetDefault("model.path", "")
	v.SetDefault("model.endpoint", "")
	v.SetDefault("model.region", "")
	v.SetDefault("model.cache_file", "")
	v.SetDefault("model.cache_ttl", "24h")
	v.SetDefault("model.rate_limit.requests_per_second", DefaultRateLimitConfig.RequestsPerSecond)
	v.SetDefault("model.rate_limit.max_retries", DefaultRateLimitConfig.MaxRetries)
	v.SetDefault("model.rate_limit.base_delay", DefaultRateLimitConfig.BaseDelay)
	v.SetDefault("model.rate_limit.max_delay", DefaultRateLimitConfig.MaxDelay)

	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.destination", OutputStdout)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.bucket", "")
	v.SetDefault("output.bucket_region", "")
	v.SetDefault("output.fail_on_risky", false)
}

// parameterSource tracks where each parameter value came from
type parameterSource struct {
	Key    string
	Value  interface{}
	Source string
}

// getParameterSource determines whether a value came from a flag, the
// environment, the config file or the defaults
func getParameterSource(v *viper.Viper, key string, cmd *cobra.Command) parameterSource {
	value := v.Get(key)
	flagName := FlagName(key)

	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			return parameterSource{key, value, "command line flag"}
		}

		for current := cmd; current != nil; current = current.Parent() {
			if f := current.PersistentFlags().Lookup(flagName); f != nil && f.Changed {
				return parameterSource{key, value, "command line flag"}
			}
		}
	}

	envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if _, exists := os.LookupEnv(envKey); exists {
		return parameterSource{key, value, "environment variable"}
	}

	if v.InConfig(key) {
		return parameterSource{key, value, "config file"}
	}

	return parameterSource{key, value, "default value"}
}

// LogConfigurationSources logs the source of each bound configuration key
func LogConfigurationSources(v *viper.Viper, cmd *cobra.Command) {
	logging.Debug("Configuration parameter sources:", nil)

	keys := make([]string, 0, len(flagNames))
	for key := range flagNames {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		source := getParameterSource(v, key, cmd)
		logging.Debug(fmt.Sprintf("  %s = %v (from %s)", source.Key, source.Value, source.Source), nil)
	}
}

// InitConfig prepares v: defaults, environment overrides and an optional
// config.yaml from the current directory or ~/.iacsift. A missing config file
// is not an error.
func InitConfig(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".iacsift"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		logging.Debug("No config file found, using defaults and environment variables", nil)
	} else {
		logging.Debug("Loaded config file", map[string]interface{}{
			"path": v.ConfigFileUsed(),
		})
	}

	return nil
}

// BindFlags lets flags set on cmd override their config keys
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range flagNames {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// DefaultConfigContent is the commented file written by `init config`
const DefaultConfigContent = `# iacsift configuration file
# Every key can also be set with an IACSIFT_ environment variable,
# e.g. IACSIFT_SCORING_DECISION_THRESHOLD=0.6

# AWS configuration (S3 report output and SageMaker scoring)
aws:
  profile: default  # AWS profile to use (supports SSO profiles)

# Application configuration
app:
  max_workers: 8  # Maximum number of resources scanned concurrently
  log_format: text  # Log output format (text or json)
  log_level: INFO  # Logging level (DEBUG, INFO, WARN, ERROR)

# Risk scoring
scoring:
  decision_threshold: 0.5  # risk_score at or above this is risky
  blend_weight: 0.5  # Share of the rule score in the blended score
  max_findings: 0  # Findings kept per verdict (0 = all)
  model_timeout: 2s  # Time allowed for one model call
  sensitive_keywords:
    - secret
    - financial
    - customer
    - personal
    - pii
    - payment
    - credential
    - password
    - confidential
    - backup
  required_tags:
    - Environment
    - Owner
    - Purpose
  # Rule weight per severity, each within [0,1]
  severity_weights:
    # info: 0.05
    # low: 0.2
    # medium: 0.45
    # high: 0.7
    # critical: 0.95

# Learned model
model:
  provider: none  # none, logistic or sagemaker
  path: ""  # Weights file (required when provider=logistic)
  endpoint: ""  # SageMaker endpoint name (required when provider=sagemaker)
  region: ""  # SageMaker region (default: profile region)
  cache_file: ""  # Persist model scores between runs
  cache_ttl: 24h
  rate_limit:
    requests_per_second: 5
    max_retries: 3
    base_delay: 200ms
    max_delay: 5s

# Reports
output:
  format: text  # text, json or html
  destination: stdout  # stdout, filesystem or s3
  dir: output  # Directory for filesystem output
  bucket: ""  # S3 bucket name (required when destination=s3)
  bucket_region: ""  # S3 bucket region (required when destination=s3)
  fail_on_risky: false  # Exit non-zero when any resource is risky
`

// WriteDefaultConfig writes DefaultConfigContent to path
func WriteDefaultConfig(path string, force bool) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if _, err := os.Stat(absPath); err == nil && !force {
		return "", fmt.Errorf("file %s already exists. Use --force to overwrite", absPath)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(absPath, []byte(DefaultConfigContent), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return absPath, nil
}
