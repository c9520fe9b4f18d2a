package verdict

import (
	"sort"
	"strings"

	"iacsift/internal/rules"
)

// Explain orders findings most severe first with rule_id breaking ties, drops
// findings whose contributing features duplicate an earlier one, and keeps at
// most maxFindings of them. maxFindings <= 0 keeps all. The input is not
// modified.
func Explain(findings []rules.Finding, maxFindings int) []rules.Finding {
	ordered := make([]rules.Finding, len(findings))
	copy(ordered, findings)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Severity != ordered[j].Severity {
			return ordered[i].Severity > ordered[j].Severity
		}
		return ordered[i].RuleID < ordered[j].RuleID
	})

	out := make([]rules.Finding, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for _, f := range ordered {
		key := featureKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	if maxFindings > 0 && len(out) > maxFindings {
		out = out[:maxFindings]
	}
	return out
}

// featureKey is an order-independent key for a finding's contributing
// features. Findings with none are keyed by rule so they never collapse into
// each other.
func featureKey(f rules.Finding) string {
	names := f.ContributingFeatures
	if len(names) == 0 {
		return "rule\x00" + f.RuleID
	}
	set := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			set = append(set, n)
		}
	}
	sort.Strings(set)
	return strings.Join(set, "\x00")
}
