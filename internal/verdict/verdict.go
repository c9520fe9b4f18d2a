// Package verdict defines the per-resource verdict record, the ordering of
// its findings and the batch summary.
package verdict

import (
	"encoding/json"

	"iacsift/internal/features"
	"iacsift/internal/resource"
	"iacsift/internal/rules"
)

// Label is the binary classification of a resource
type Label string

const (
	Safe  Label = "safe"
	Risky Label = "risky"
)

// LabelFor returns Risky when score reaches threshold. A score equal to the
// threshold is risky.
func LabelFor(score, threshold float64) Label {
	if score >= threshold {
		return Risky
	}
	return Safe
}

// ModelStatus records what happened to the learned-model call
type ModelStatus string

const (
	ModelOK          ModelStatus = "ok"
	ModelUnavailable ModelStatus = "unavailable"
	ModelTimeout     ModelStatus = "timeout"
	ModelDisabled    ModelStatus = "disabled"
)

// Metadata carries non-fatal details about how a verdict was produced
type Metadata struct {
	ModelStatus ModelStatus           `json:"model_status"`
	ModelError  string                `json:"model_error,omitempty"`
	Diagnostics []resource.Diagnostic `json:"diagnostics,omitempty"`
}

// Verdict is the classification of one resource declaration. Field names are
// part of the report format.
type Verdict struct {
	ResourceName    string          `json:"resource_name"`
	ResourceKind    resource.Kind   `json:"resource_kind"`
	ResourceType    string          `json:"resource_type"`
	Source          string          `json:"source,omitempty"`
	RiskLabel       Label           `json:"risk_label"`
	RiskScore       float64         `json:"risk_score"`
	RuleScore       float64         `json:"rule_score"`
	ModelScore      *float64        `json:"model_score,omitempty"`
	ModelConfidence *float64        `json:"model_confidence,omitempty"`
	Findings        []rules.Finding `json:"findings"`
	Features        features.Vector `json:"features"`
	Metadata        Metadata        `json:"metadata"`
}

// IsRisky reports whether the resource was classified risky
func (v Verdict) IsRisky() bool {
	return v.RiskLabel == Risky
}

// ID returns "type.name", or the name alone when the type is unknown
func (v Verdict) ID() string {
	if v.ResourceType == "" {
		return v.ResourceName
	}
	return v.ResourceType + "." + v.ResourceName
}

// Marshal renders v as indented JSON. Equal verdicts render to identical bytes.
func Marshal(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
