package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	initCmd "iacsift/cmd/init"
	"iacsift/cmd/list"
	"iacsift/cmd/scan"
	"iacsift/cmd/version"
	"iacsift/internal/config"
	"iacsift/internal/logging"
)

// NewRootCmd builds the command tree around its own viper instance
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "iacsift",
		Short: "iacsift - infrastructure-as-code risk classifier",
		Long: `iacsift reads Terraform, JSON and YAML resource declarations and classifies
each resource as safe or risky. Rule findings are blended with an optional
learned model and explained per resource.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipConfig(cmd) {
				return nil
			}

			if err := config.InitConfig(v, configFile); err != nil {
				return err
			}
			if err := config.BindFlags(v, cmd); err != nil {
				return err
			}

			config.Config.Profile = v.GetString("aws.profile")
			config.Config.MaxWorkers = v.GetInt("app.max_workers")
			config.Config.LogFormat = v.GetString("app.log_format")
			config.Config.LogLevel = v.GetString("app.log_level")

			logging.Configure(logging.LogConfig{
				Level:  logging.ParseLevel(config.Config.LogLevel),
				Format: logging.ParseFormat(config.Config.LogFormat),
			})
			config.LogConfigurationSources(v, cmd)
			return nil
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("profile", "p", "default", "AWS profile to use for S3 output and SageMaker scoring")
	rootCmd.PersistentFlags().Int("max-workers", runtime.NumCPU(), "Maximum number of resources scanned concurrently")
	rootCmd.PersistentFlags().String("log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "Set logging level (DEBUG, INFO, WARN, ERROR)")

	// Add commands
	rootCmd.AddCommand(scan.NewScanCmd(v))
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}

// skipConfig reports whether cmd runs without loading configuration
func skipConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return cmd.Parent() != nil && cmd.Parent().Name() == "init"
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
