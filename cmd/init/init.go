package init

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize iacsift configuration files",
		Long: `Initialize iacsift configuration files.

This command helps you create a default config.yaml with every scoring,
model and output setting documented.`,
	}

	cmd.AddCommand(NewConfigCmd())

	return cmd
}
