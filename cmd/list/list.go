package list

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules, features and AWS profiles",
		Long: `List the built-in catalogs and local configuration.
Currently supports listing:
  - Risk rules with their severity and the features they read
  - Features extracted from every resource
  - Available AWS credential profiles`,
	}
	cmd.PersistentFlags().String("format", "text", "Output format (text or json)")

	// Add subcommands
	cmd.AddCommand(NewRulesCmd())
	cmd.AddCommand(NewFeaturesCmd())
	cmd.AddCommand(NewProfilesCmd())

	return cmd
}

func wantJSON(cmd *cobra.Command) bool {
	format, err := cmd.Flags().GetString("format")
	return err == nil && format == "json"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
