package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when settings fail validation. A scan never
// starts with invalid settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Model providers
const (
	ProviderNone      = "none"
	ProviderLogistic  = "logistic"
	ProviderSageMaker = "sagemaker"
)

// Output destinations and formats
const (
	OutputStdout     = "stdout"
	OutputFilesystem = "filesystem"
	OutputS3         = "s3"

	FormatText = "text"
	FormatJSON = "json"
	FormatHTML = "html"
)

var severityNames = []string{"info", "low", "medium", "high", "critical"}

// Settings is the validated configuration of a scan
type Settings struct {
	Scoring ScoringSettings
	Model   ModelSettings
	App     AppSettings
	Output  OutputSettings
}

// ScoringSettings tune the hybrid classifier
type ScoringSettings struct {
	DecisionThreshold float64
	BlendWeight       float64
	SensitiveKeywords []string
	RequiredTags      []string
	MaxFindings       int
	ModelTimeout      time.Duration
	// SeverityWeights overrides rule weights by severity name
	SeverityWeights map[string]float64
}

// ModelSettings select and configure the learned model
type ModelSettings struct {
	Provider  string
	Path      string
	Endpoint  string
	Region    string
	CacheFile string
	CacheTTL  time.Duration
	RateLimit RateLimitConfig
}

// AppSettings are process-level options
type AppSettings struct {
	MaxWorkers int
	LogFormat  string
	LogLevel   string
}

// OutputSettings control where reports go
type OutputSettings struct {
	Format       string
	Destination  string
	Dir          string
	Bucket       string
	BucketRegion string
	FailOnRisky  bool
}

// LoadSettings reads and validates settings from v
func LoadSettings(v *viper.Viper) (Settings, error) {
	s := Settings{
		Scoring: ScoringSettings{
			DecisionThreshold: v.GetFloat64("scoring.decision_threshold"),
			BlendWeight:       v.GetFloat64("scoring.blend_weight"),
			SensitiveKeywords: stringList(v, "scoring.sensitive_keywords"),
			RequiredTags:      stringList(v, "scoring.required_tags"),
			MaxFindings:       v.GetInt("scoring.max_findings"),
			ModelTimeout:      v.GetDuration("scoring.model_timeout"),
			SeverityWeights:   make(map[string]float64),
		},
		Model: ModelSettings{
			Provider:  strings.ToLower(v.GetString("model.provider")),
			Path:      v.GetString("model.path"),
			Endpoint:  v.GetString("model.endpoint"),
			Region:    v.GetString("model.region"),
			CacheFile: v.GetString("model.cache_file"),
			CacheTTL:  v.GetDuration("model.cache_ttl"),
			RateLimit: RateLimitConfig{
				RequestsPerSecond: v.GetFloat64("model.rate_limit.requests_per_second"),
				MaxRetries:        v.GetInt("model.rate_limit.max_retries"),
				BaseDelay:         v.GetDuration("model.rate_limit.base_delay"),
				MaxDelay:          v.GetDuration("model.rate_limit.max_delay"),
			},
		},
		App: AppSettings{
			MaxWorkers: v.GetInt("app.max_workers"),
			LogFormat:  v.GetString("app.log_format"),
			LogLevel:   v.GetString("app.log_level"),
		},
		Output: OutputSettings{
			Format:       strings.ToLower(v.GetString("output.format")),
			Destination:  strings.ToLower(v.GetString("output.destination")),
			Dir:          v.GetString("output.dir"),
			Bucket:       v.GetString("output.bucket"),
			BucketRegion: v.GetString("output.bucket_region"),
			FailOnRisky:  v.GetBool("output.fail_on_risky"),
		},
	}

	for _, name := range severityNames {
		key := "scoring.severity_weights." + name
		if v.IsSet(key) {
			s.Scoring.SeverityWeights[name] = v.GetFloat64(key)
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every setting and reports all problems at once
func (s Settings) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !unit(s.Scoring.DecisionThreshold) {
		add("scoring.decision_threshold must be within [0,1], got %v", s.Scoring.DecisionThreshold)
	}
	if !unit(s.Scoring.BlendWeight) {
		add("scoring.blend_weight must be within [0,1], got %v", s.Scoring.BlendWeight)
	}
	if s.Scoring.MaxFindings < 0 {
		add("scoring.max_findings must not be negative, got %d", s.Scoring.MaxFindings)
	}
	if s.Scoring.ModelTimeout <= 0 {
		add("scoring.model_timeout must be positive, got %s", s.Scoring.ModelTimeout)
	}
	for name, w := range s.Scoring.SeverityWeights {
		if !unit(w) {
			add("scoring.severity_weights.%s must be within [0,1], got %v", name, w)
		}
	}

	switch s.Model.Provider {
	case ProviderNone:
	case ProviderLogistic:
		if s.Model.Path == "" {
			add("model.path is required when model.provider=%s", ProviderLogistic)
		}
	case ProviderSageMaker:
		if s.Model.Endpoint == "" {
			add("model.endpoint is required when model.provider=%s", ProviderSageMaker)
		}
	default:
		add("unknown model.provider %q (want none, logistic or sagemaker)", s.Model.Provider)
	}

	if s.App.MaxWorkers <= 0 {
		add("app.max_workers must be greater than 0, got %d", s.App.MaxWorkers)
	}

	switch s.Output.Format {
	case FormatText, FormatJSON, FormatHTML:
	default:
		add("invalid output.format %q (want text, json or html)", s.Output.Format)
	}
	switch s.Output.Destination {
	case OutputStdout, OutputFilesystem:
	case OutputS3:
		if s.Output.Bucket == "" {
			add("output.bucket is required when output.destination=s3")
		}
		if s.Output.BucketRegion == "" {
			add("output.bucket_region is required when output.destination=s3")
		}
	default:
		add("invalid output.destination %q (want stdout, filesystem or s3)", s.Output.Destination)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func unit(x float64) bool {
	return x >= 0 && x <= 1
}

// stringList accepts both YAML lists and comma-separated strings, the latter
// being what environment variables provide
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
