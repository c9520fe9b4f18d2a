package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"iacsift/internal/rules"
)

// WriteText renders r as a colored terminal listing followed by a summary
func WriteText(w io.Writer, r Report) error {
	var b strings.Builder

	for _, v := range r.Verdicts {
		fmt.Fprintf(&b, "%s %.2f [%s] %s",
			labelColor(v.RiskLabel).Sprintf("%-5s", strings.ToUpper(string(v.RiskLabel))),
			v.RiskScore,
			gauge(v.RiskScore),
			color.New(color.Bold).Sprint(v.ID()))
		if v.Source != "" {
			fmt.Fprintf(&b, " (%s)", v.Source)
		}
		b.WriteString("\n")

		fmt.Fprintf(&b, "      rule %.2f  model %s  confidence %s  model status %s\n",
			v.RuleScore, formatScore(v.ModelScore), formatScore(v.ModelConfidence), v.Metadata.ModelStatus)

		for _, f := range v.Findings {
			fmt.Fprintf(&b, "      %s %-12s %s\n",
				severityColor(f.Severity).Sprintf("%-8s", strings.ToUpper(f.Severity.String())),
				f.RuleID,
				f.Message)
			if f.Remediation != "" {
				fix := strings.ReplaceAll(f.Remediation, "\n", "\n           ")
				fmt.Fprintf(&b, "         %s %s\n", color.New(color.Faint).Sprint("fix:"), fix)
			}
		}
		for _, d := range v.Metadata.Diagnostics {
			fmt.Fprintf(&b, "      %s %s\n", color.New(color.FgMagenta).Sprint("note"), d.String())
		}
	}

	if len(r.InputErrors) > 0 {
		b.WriteString("\n")
		for _, path := range sortedKeys(r.InputErrors) {
			fmt.Fprintf(&b, "%s %s: %s\n", color.New(color.FgMagenta).Sprint("skipped"), path, r.InputErrors[path])
		}
	}

	s := r.Summary
	fmt.Fprintf(&b, "\nScanned %d resource(s) in %d file(s): %s, %d safe. Max risk %.2f. Decision: %s\n",
		s.Resources, len(r.Files),
		color.New(color.FgRed).Sprintf("%d risky", s.Risky),
		s.Safe, s.MaxRiskScore,
		scoreColor(s.MaxRiskScore).Sprint(strings.ToUpper(string(s.Decision))))

	var counts []string
	for i := len(rules.Severities) - 1; i >= 0; i-- {
		sev := rules.Severities[i]
		counts = append(counts, fmt.Sprintf("%s %d", sev, s.FindingsBySeverity[sev.String()]))
	}
	fmt.Fprintf(&b, "Findings: %s\n", strings.Join(counts, ", "))
	if s.ModelFallbacks > 0 {
		fmt.Fprintf(&b, "Model fallbacks: %d\n", s.ModelFallbacks)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
