package verdict

import "iacsift/internal/rules"

// Decision is the overall gate for a batch
type Decision string

const (
	Allow Decision = "allow"
	Warn  Decision = "warn"
	Block Decision = "block"
)

// Gate thresholds over the highest risk score in a batch
const (
	BlockAbove = 0.7
	WarnAbove  = 0.3
)

// DecisionFor maps the highest risk score of a batch onto a gate decision
func DecisionFor(maxRisk float64) Decision {
	switch {
	case maxRisk > BlockAbove:
		return Block
	case maxRisk > WarnAbove:
		return Warn
	default:
		return Allow
	}
}

// Summary aggregates the verdicts of one scan
type Summary struct {
	Resources          int            `json:"resources"`
	Risky              int            `json:"risky"`
	Safe               int            `json:"safe"`
	MaxRiskScore       float64        `json:"max_risk_score"`
	FindingsBySeverity map[string]int `json:"findings_by_severity"`
	ModelFallbacks     int            `json:"model_fallbacks"`
	Decision           Decision       `json:"decision"`
}

// Summarize totals verdicts
func Summarize(verdicts []Verdict) Summary {
	s := Summary{
		Resources:          len(verdicts),
		FindingsBySeverity: make(map[string]int, len(rules.Severities)),
	}
	for _, sev := range rules.Severities {
		s.FindingsBySeverity[sev.String()] = 0
	}

	for _, v := range verdicts {
		if v.IsRisky() {
			s.Risky++
		} else {
			s.Safe++
		}
		if v.RiskScore > s.MaxRiskScore {
			s.MaxRiskScore = v.RiskScore
		}
		if v.Metadata.ModelStatus == ModelUnavailable || v.Metadata.ModelStatus == ModelTimeout {
			s.ModelFallbacks++
		}
		for _, f := range v.Findings {
			s.FindingsBySeverity[f.Severity.String()]++
		}
	}

	s.Decision = DecisionFor(s.MaxRiskScore)
	return s
}
