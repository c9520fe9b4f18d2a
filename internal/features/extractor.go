package features

import (
	"fmt"
	"sort"
	"strings"

	"iacsift/internal/logging"
	"iacsift/internal/resource"
)

// Feature names in the catalog
const (
	PublicAccess            = "public_access"
	EncryptionEnabled       = "encryption_enabled"
	VersioningEnabled       = "versioning_enabled"
	LoggingEnabled          = "logging_enabled"
	SensitiveNaming         = "sensitive_naming"
	HasTags                 = "has_tags"
	MFADeleteRequired       = "mfa_delete_required"
	LifecyclePolicyPresent  = "lifecycle_policy_present"
	CORSWildcard            = "cors_wildcard"
	TagQualityScore         = "tag_quality_score"
	HardcodedSecretPresent  = "hardcoded_secret_present"
	AdminWildcardPermission = "admin_wildcard_permission"
	ResourceKind            = "resource_kind"
	ExposedAdminPort        = "exposed_admin_port"
	WebsiteHostingEnabled   = "website_hosting_enabled"
	BackupRetentionDays     = "backup_retention_days"
)

var (
	// DefaultSensitiveKeywords are matched against names, identifiers and tag values
	DefaultSensitiveKeywords = []string{
		"secret", "financial", "customer", "personal", "pii",
		"payment", "credential", "password", "confidential", "backup",
	}

	// DefaultRequiredTags are the tags every resource is expected to carry
	DefaultRequiredTags = []string{"Environment", "Owner", "Purpose"}
)

// Options carries the configuration extractors depend on
type Options struct {
	SensitiveKeywords []string
	RequiredTags      []string
}

// DefaultOptions returns options populated with the default keyword and tag sets
func DefaultOptions() Options {
	return Options{
		SensitiveKeywords: append([]string(nil), DefaultSensitiveKeywords...),
		RequiredTags:      append([]string(nil), DefaultRequiredTags...),
	}
}

// Extractor derives one named signal from a declaration
type Extractor interface {
	// Name returns the feature name used as the vector key
	Name() string

	// Description returns a one-line human readable description
	Description() string

	// Default is returned when the extractor cannot evaluate the declaration
	Default() Value

	// Extract computes the feature. It must not depend on other features.
	Extract(d *resource.Declaration, opts Options) Value
}

// Registry maintains the catalog of feature extractors
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
	}
}

// Register adds an extractor to the registry
func (r *Registry) Register(e Extractor) error {
	name := e.Name()
	if _, exists := r.extractors[name]; exists {
		return fmt.Errorf("feature extractor '%s' already registered", name)
	}
	r.extractors[name] = e
	return nil
}

// Get retrieves an extractor by feature name, ignoring case
func (r *Registry) Get(name string) (Extractor, error) {
	if e, ok := r.extractors[name]; ok {
		return e, nil
	}
	for key, e := range r.extractors {
		if strings.EqualFold(key, name) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no feature extractor found for '%s'", name)
}

// Names returns the sorted list of registered feature names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract runs every registered extractor against d and collects the results.
// The returned vector always contains every catalog feature.
func (r *Registry) Extract(d *resource.Declaration, opts Options) Vector {
	values := make(map[string]Value, len(r.extractors))
	for _, name := range r.Names() {
		values[name] = safeExtract(r.extractors[name], d, opts)
	}
	return NewVector(values)
}

func safeExtract(e Extractor, d *resource.Declaration, opts Options) (v Value) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Debug("Feature extractor failed, using default", map[string]interface{}{
				"feature":  e.Name(),
				"resource": d.ID(),
				"panic":    fmt.Sprint(rec),
			})
			v = e.Default()
		}
	}()

	v = e.Extract(d, opts)
	if v.Type() != e.Default().Type() {
		return e.Default()
	}
	return v
}

// DefaultRegistry is the registry the built-in extractors register into
var DefaultRegistry = NewRegistry()

// extractor adapts a plain function to the Extractor interface
type extractor struct {
	name        string
	description string
	def         Value
	fn          func(d *resource.Declaration, opts Options) Value
}

func (e *extractor) Name() string        { return e.name }
func (e *extractor) Description() string { return e.description }
func (e *extractor) Default() Value      { return e.def }

func (e *extractor) Extract(d *resource.Declaration, opts Options) Value {
	return e.fn(d, opts)
}

func mustRegister(extractors ...*extractor) {
	for _, e := range extractors {
		if err := DefaultRegistry.Register(e); err != nil {
			panic(fmt.Sprintf("Failed to register feature extractor: %v", err))
		}
	}
}

// resource_kind lets rules scope themselves to kinds without reading the
// declaration directly
func init() {
	mustRegister(&extractor{
		name:        ResourceKind,
		description: "Canonical kind of the resource",
		def:         Enum(string(resource.KindUnknown)),
		fn: func(d *resource.Declaration, _ Options) Value {
			return Enum(string(d.Kind()))
		},
	})
}
