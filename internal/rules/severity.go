package rules

import (
	"fmt"
	"strings"
)

// Severity is the ordered impact level of a finding
type Severity int

const (
	Info Severity = iota
	Low
	Medium
	High
	Critical
)

// Severities lists every level from least to most severe
var Severities = []Severity{Info, Low, Medium, High, Critical}

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a severity name onto a Severity, ignoring case
func ParseSeverity(name string) (Severity, error) {
	for _, s := range Severities {
		if strings.EqualFold(strings.TrimSpace(name), s.String()) {
			return s, nil
		}
	}
	return Info, fmt.Errorf("unknown severity '%s'", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Weights maps each severity onto its contribution to the rule score
type Weights map[Severity]float64

// DefaultWeights returns the default severity weight table
func DefaultWeights() Weights {
	return Weights{
		Info:     0.05,
		Low:      0.2,
		Medium:   0.45,
		High:     0.7,
		Critical: 0.95,
	}
}

// Validate checks that every weight lies in [0,1]
func (w Weights) Validate() error {
	for s, v := range w {
		if v < 0 || v > 1 {
			return fmt.Errorf("severity weight for %s must be within [0,1], got %v", s, v)
		}
	}
	return nil
}
