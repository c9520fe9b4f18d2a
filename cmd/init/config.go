package init

import (
	"fmt"

	"github.com/spf13/cobra"

	"iacsift/internal/config"
)

// NewConfigCmd creates the config subcommand
func NewConfigCmd() *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create a default config.yaml file",
		Long: `Create a default config.yaml file with recommended settings.

The file will be created in the current directory by default.
You can specify a different location using the --output flag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "config.yaml"
			}

			path, err := config.WriteDefaultConfig(output, force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./config.yaml)")

	return cmd
}
