package list

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"iacsift/internal/rules"
)

type ruleInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    string   `json:"severity"`
	Kinds       []string `json:"kinds,omitempty"`
	Features    []string `json:"features"`
	Remediation string   `json:"remediation"`
}

// NewRulesCmd creates and returns the rules command
func NewRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in risk rules",
		Example: `  # List every rule
  iacsift list rules

  # As JSON
  iacsift list rules --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []ruleInfo
			for _, r := range rules.DefaultRegistry.Rules() {
				info := ruleInfo{
					ID:          r.ID,
					Title:       r.Title,
					Severity:    r.Severity.String(),
					Features:    r.Features,
					Remediation: r.Remediation,
				}
				for _, k := range r.Kinds {
					info.Kinds = append(info.Kinds, string(k))
				}
				infos = append(infos, info)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return writeJSON(out, infos)
			}

			bold := color.New(color.Bold)
			for _, info := range infos {
				fmt.Fprintf(out, "%-13s %-8s %s\n", bold.Sprint(info.ID), strings.ToUpper(info.Severity), info.Title)
				scope := "any"
				if len(info.Kinds) > 0 {
					scope = strings.Join(info.Kinds, ", ")
				}
				fmt.Fprintf(out, "              kinds: %s  features: %s\n", scope, strings.Join(info.Features, ", "))
			}
			return nil
		},
	}
}
