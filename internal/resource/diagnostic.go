package resource

import "fmt"

// DiagnosticCode classifies a non-fatal problem found while building a declaration
type DiagnosticCode string

const (
	// MalformedAttribute marks an attribute whose shape did not match the schema
	// for its kind. The value is dropped and reads as absent.
	MalformedAttribute DiagnosticCode = "malformed_attribute"
	// UnknownResourceKind marks a declaration whose type is not in the kind table.
	// It is still scanned with the generic feature subset.
	UnknownResourceKind DiagnosticCode = "unknown_resource_kind"
)

// Diagnostic is attached to a declaration and surfaced in the verdict metadata
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Path    string         `json:"path,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s at %s: %s", d.Code, d.Path, d.Message)
}
