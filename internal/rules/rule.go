package rules

import (
	"errors"
	"fmt"
	"sort"

	"iacsift/internal/features"
	"iacsift/internal/resource"
)

// Finding is one triggered rule instance
type Finding struct {
	RuleID               string   `json:"rule_id"`
	Severity             Severity `json:"severity"`
	Message              string   `json:"message"`
	ContributingFeatures []string `json:"contributing_features"`
	Remediation          string   `json:"remediation,omitempty"`
}

// Rule is a deterministic predicate over a feature vector. Rules read only
// the vector, never the declaration.
type Rule struct {
	ID       string
	Title    string
	Severity Severity

	// Kinds restricts the rule to the listed resource kinds; empty means any
	Kinds []resource.Kind

	// Features lists the features the predicate reads, reported as the
	// finding's contributing features
	Features []string

	Predicate func(v features.Vector) bool

	// Message renders the finding text; Title is used when nil
	Message func(v features.Vector) string

	Remediation string
}

// Applies reports whether the rule fires for v
func (r Rule) Applies(v features.Vector) bool {
	if len(r.Kinds) > 0 {
		kind := resource.Kind(v.Enum(features.ResourceKind))
		matched := false
		for _, k := range r.Kinds {
			if k == kind {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return r.Predicate(v)
}

// Finding builds the finding the rule produces for v
func (r Rule) Finding(v features.Vector) Finding {
	msg := r.Title
	if r.Message != nil {
		msg = r.Message(v)
	}
	contributing := append([]string(nil), r.Features...)
	sort.Strings(contributing)
	return Finding{
		RuleID:               r.ID,
		Severity:             r.Severity,
		Message:              msg,
		ContributingFeatures: contributing,
		Remediation:          r.Remediation,
	}
}

// ErrInvalidRule is returned when registering a rule without an ID or predicate
var ErrInvalidRule = errors.New("invalid rule")

// Registry maintains the rule catalog
type Registry struct {
	rules map[string]Rule
}

// NewRegistry creates an empty rule registry
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]Rule),
	}
}

// Register adds a rule to the registry
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" || rule.Predicate == nil {
		return fmt.Errorf("%w: rule '%s' needs an ID and a predicate", ErrInvalidRule, rule.ID)
	}
	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("rule '%s' already registered", rule.ID)
	}
	r.rules[rule.ID] = rule
	return nil
}

// Get retrieves a rule by ID
func (r *Registry) Get(id string) (Rule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("no rule found for '%s'", id)
	}
	return rule, nil
}

// Rules returns every registered rule ordered by ID
func (r *Registry) Rules() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultRegistry holds the built-in rule catalog
var DefaultRegistry = NewRegistry()

func mustRegister(rules ...Rule) {
	for _, rule := range rules {
		if err := DefaultRegistry.Register(rule); err != nil {
			panic(fmt.Sprintf("Failed to register rule: %v", err))
		}
	}
}
