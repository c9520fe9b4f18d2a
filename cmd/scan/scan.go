package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"iacsift/internal/awsutil"
	"iacsift/internal/config"
	"iacsift/internal/input"
	"iacsift/internal/logging"
	"iacsift/internal/model"
	"iacsift/internal/output"
	"iacsift/internal/scoring"
	"iacsift/internal/version"
	"iacsift/internal/worker"
)

// ErrRiskyResources is returned by scan --fail-on-risky when any resource is risky
var ErrRiskyResources = errors.New("risky resources found")

type scanOptions struct {
	noProgress bool
	roleARN    string // Role to assume for S3 report upload
}

// NewScanCmd creates the scan command. Flags are bound to the keys of v.
func NewScanCmd(v *viper.Viper) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Classify IaC resources as safe or risky",
		Long: `Scan Terraform (.tf, .tf.json), plan JSON and YAML resource files and classify
every resource declaration as safe or risky.

Directories are walked recursively. When no path is given the current directory is scanned.
Each verdict lists the findings that drove it, most severe first, with a fix suggestion.

Examples:
  # Scan the current directory and print a colored listing
  iacsift scan

  # Write a JSON report for two modules
  iacsift scan ./network ./storage --output-format json

  # Blend rules with a local logistic model and fail the build on risky resources
  iacsift scan infra/ --model-provider logistic --model-path models/logistic.yaml --fail-on-risky

  # Upload an HTML report to S3
  iacsift scan --output s3 --output-format html --bucket my-bucket --bucket-region us-west-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, v, args, opts)
		},
	}

	cmd.Flags().StringP("output-format", "o", config.FormatText, "Output format (text, json, html)")
	cmd.Flags().String("output", config.OutputStdout, "Output destination (stdout, filesystem, s3)")
	cmd.Flags().String("output-dir", "output", "Directory for filesystem output")
	cmd.Flags().String("bucket", "", "S3 bucket name (required when --output=s3)")
	cmd.Flags().String("bucket-region", "", "S3 bucket region (required when --output=s3)")
	cmd.Flags().Float64("threshold", 0.5, "Risk score at or above which a resource is risky")
	cmd.Flags().Float64("blend-weight", 0.5, "Share of the rule score in the blended risk score")
	cmd.Flags().Int("max-findings", 0, "Findings kept per resource (0 = all)")
	cmd.Flags().Duration("model-timeout", scoring.DefaultModelTimeout, "Time allowed for one model call")
	cmd.Flags().String("model-provider", config.ProviderNone, "Learned model (none, logistic, sagemaker)")
	cmd.Flags().String("model-path", "", "Logistic model weights file")
	cmd.Flags().String("model-endpoint", "", "SageMaker endpoint name")
	cmd.Flags().Bool("fail-on-risky", false, "Exit with status 2 when any resource is risky")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Do not draw progress bars")
	cmd.Flags().StringVar(&opts.roleARN, "role-arn", "", "Role to assume for the S3 upload")

	return cmd
}

func runScan(cmd *cobra.Command, v *viper.Viper, paths []string, opts *scanOptions) error {
	settings, err := config.LoadSettings(v)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := input.Discover(paths)
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no IaC files found in %s", strings.Join(paths, ", "))
	}

	loaded := input.Load(files)

	needsAWS := settings.Output.Destination == config.OutputS3 || settings.Model.Provider == config.ProviderSageMaker
	if needsAWS && config.Config.Profile != "" && !awsutil.IsValidProfile(config.Config.Profile) {
		logging.Warn("AWS profile not found in shared config files", map[string]interface{}{
			"profile": config.Config.Profile,
		})
	}

	m, err := model.FromSettings(settings.Model, func(region string) (*session.Session, error) {
		return awsutil.NewSession(config.Config.Profile, region)
	})
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	classifier, err := scoring.NewFromSettings(settings.Scoring, m)
	if err != nil {
		return err
	}

	pool := worker.NewPool(settings.App.MaxWorkers)
	pool.SetTaskTimeout(worker.DefaultTaskTimeout + settings.Scoring.ModelTimeout)
	pool.Start()
	defer pool.Stop()
	classifier.WithPool(pool)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	startTime := time.Now()
	logging.ScanStart(loaded.Files, len(loaded.Declarations))

	var bar *output.ScanProgress
	var progress scoring.ProgressFunc
	if !opts.noProgress && len(loaded.Declarations) > 0 {
		bar = output.NewScanProgress(cmd.ErrOrStderr(), len(loaded.Declarations))
		progress = bar.Update
	}

	verdicts := classifier.ClassifyBatch(ctx, loaded.Declarations, progress)
	if bar != nil {
		bar.Finish()
	}
	if len(verdicts) < len(loaded.Declarations) {
		logging.Warn("Scan interrupted, report is partial", map[string]interface{}{
			"classified": len(verdicts),
			"total":      len(loaded.Declarations),
		})
	}

	if saver, ok := m.(model.Saver); ok {
		if err := saver.Save(); err != nil {
			logging.Warn("Failed to save model score cache", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	report := output.NewReport(version.ShortString(), loaded.Files, verdicts, loaded.Errors)
	metrics := pool.GetMetrics()
	logging.Debug("Worker pool metrics", map[string]interface{}{
		"workers":    pool.Size(),
		"completed":  metrics.CompletedTasks,
		"failed":     metrics.FailedTasks,
		"skipped":    metrics.SkippedTasks,
		"duration_s": time.Since(startTime).Seconds(),
	})

	writer := output.NewWriter(output.Config{
		Type:         output.Type(settings.Output.Destination),
		Format:       output.Format(settings.Output.Format),
		S3Bucket:     settings.Output.Bucket,
		S3Region:     settings.Output.BucketRegion,
		OutputDir:    settings.Output.Dir,
		Profile:      config.Config.Profile,
		RoleARN:      opts.roleARN,
		Stdout:       cmd.OutOrStdout(),
		ShowProgress: !opts.noProgress,
	})
	where, err := writeReport(ctx, writer, report)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if settings.Output.Destination != config.OutputStdout {
		logging.Progress("Report written", map[string]interface{}{
			"destination": where,
		})
	}

	logging.ScanComplete(report.Summary.Resources, report.Summary.Risky)

	if settings.Output.FailOnRisky && report.Summary.Risky > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRiskyResources, report.Summary.Risky, report.Summary.Resources)
	}
	return nil
}

// writeReport ignores cancellation of ctx so an interrupted scan still
// delivers its partial report
func writeReport(ctx context.Context, w *output.Writer, r output.Report) (string, error) {
	return w.Write(context.WithoutCancel(ctx), r)
}
