package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"iacsift/internal/awsutil"
)

// NewProfilesCmd creates and returns the profiles command
func NewProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List available AWS profiles",
		Long: `List all available AWS credential profiles from the system.
These profiles are read from the AWS credentials and config files and can be
passed to --profile for S3 report upload and SageMaker scoring.`,
		Example: `  # List all available AWS profiles
  iacsift list profiles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := awsutil.ListProfiles()
			if err != nil {
				return fmt.Errorf("failed to list profiles: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return writeJSON(out, profiles)
			}
			for _, profile := range profiles {
				fmt.Fprintln(out, profile)
			}
			return nil
		},
	}

	return cmd
}
