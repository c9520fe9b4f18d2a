package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacsift/internal/config"
	"iacsift/internal/logging"
	"iacsift/internal/output"
	"iacsift/internal/verdict"
)

const mainTF = `
resource "aws_s3_bucket" "uploads" {
  bucket = "acme-uploads"
  acl    = "public-read"

  tags = {
    Owner = "web"
  }
}

resource "aws_security_group" "ssh" {
  ingress {
    from_port   = 22
    to_port     = 22
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`

type scanReport struct {
	Files       []string          `json:"files"`
	InputErrors map[string]string `json:"input_errors"`
	Summary     verdict.Summary   `json:"summary"`
	Verdicts    []struct {
		ResourceName string   `json:"resource_name"`
		RiskLabel    string   `json:"risk_label"`
		ModelScore   *float64 `json:"model_score"`
		Metadata     struct {
			ModelStatus string `json:"model_status"`
		} `json:"metadata"`
	} `json:"verdicts"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runScanCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logging.SetOutput(io.Discard)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	v := viper.New()
	config.SetDefaults(v)
	cmd := NewScanCmd(v)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	require.NoError(t, config.BindFlags(v, cmd))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--no-progress"))
	err := cmd.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) scanReport {
	t.Helper()
	var r scanReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	return r
}

func TestScanJSONReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)

	out, err := runScanCmd(t, dir, "--output-format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, []string{filepath.Join(dir, "main.tf")}, r.Files)
	require.Len(t, r.Verdicts, 2)
	assert.Equal(t, "uploads", r.Verdicts[0].ResourceName)
	assert.Equal(t, "ssh", r.Verdicts[1].ResourceName)
	for _, v := range r.Verdicts {
		assert.Equal(t, "risky", v.RiskLabel, v.ResourceName)
		assert.Equal(t, "disabled", v.Metadata.ModelStatus)
		assert.Nil(t, v.ModelScore)
	}
	assert.Equal(t, 2, r.Summary.Risky)
	assert.Equal(t, verdict.Block, r.Summary.Decision)
	assert.GreaterOrEqual(t, r.Summary.FindingsBySeverity["critical"], 1)
}

func TestScanTextReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)

	out, err := runScanCmd(t, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "aws_security_group.ssh")
	assert.Contains(t, out, "IAC-NET-001")
	assert.Contains(t, out, "Scanned 2 resource(s) in 1 file(s)")
}

func TestScanFailOnRisky(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)

	_, err := runScanCmd(t, dir, "--fail-on-risky", "--output-format", "json")
	require.ErrorIs(t, err, ErrRiskyResources)
	assert.Contains(t, err.Error(), "2 of 2")

	// nothing reaches a threshold of 1
	_, err = runScanCmd(t, dir, "--fail-on-risky", "--threshold", "1")
	assert.NoError(t, err)
}

func TestScanRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)

	tests := map[string][]string{
		"threshold":    {"--threshold", "1.5"},
		"blend weight": {"--blend-weight", "-0.1"},
		"max findings": {"--max-findings", "-1"},
		"provider":     {"--model-provider", "neural"},
		"model path":   {"--model-provider", "logistic"},
		"destination":  {"--output", "ftp"},
		"s3 bucket":    {"--output", "s3"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := runScanCmd(t, append([]string{dir}, args...)...)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Empty(t, out, "nothing is scanned with invalid settings")
		})
	}
}

func TestScanWithLogisticModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)

	out, err := runScanCmd(t, dir,
		"--output-format", "json",
		"--model-provider", "logistic",
		"--model-path", filepath.Join("..", "..", "models", "logistic.yaml"))
	require.NoError(t, err)

	r := decodeReport(t, out)
	require.Len(t, r.Verdicts, 2)
	for _, v := range r.Verdicts {
		assert.Equal(t, "ok", v.Metadata.ModelStatus)
		require.NotNil(t, v.ModelScore)
		assert.True(t, *v.ModelScore >= 0 && *v.ModelScore <= 1)
	}
}

func TestScanRecordsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)
	broken := writeFile(t, dir, "broken.json", `{"resource": `)

	out, err := runScanCmd(t, dir, "--output-format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Len(t, r.Verdicts, 2)
	assert.Contains(t, r.InputErrors, broken)
	assert.NotContains(t, r.Files, broken)
}

func TestScanNoFiles(t *testing.T) {
	_, err := runScanCmd(t, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no IaC files found")
}

func TestScanHTMLToFileSystem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", mainTF)
	outDir := filepath.Join(t.TempDir(), "reports")

	out, err := runScanCmd(t, dir, "--output", "filesystem", "--output-format", "html", "--output-dir", outDir)
	require.NoError(t, err)
	assert.Empty(t, out)

	var reports []string
	require.NoError(t, filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && strings.HasSuffix(path, ".html") {
			reports = append(reports, path)
		}
		return err
	}))
	require.Len(t, reports, 1)

	page, err := os.ReadFile(reports[0])
	require.NoError(t, err)
	assert.Contains(t, string(page), "aws_s3_bucket.uploads")
}

func TestScanExamples(t *testing.T) {
	out, err := runScanCmd(t, filepath.Join("..", "..", "examples"), "--output-format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Empty(t, r.InputErrors)
	require.Len(t, r.Files, 3)

	labels := make(map[string]string)
	for _, v := range r.Verdicts {
		labels[v.ResourceName] = v.RiskLabel
	}
	assert.Equal(t, map[string]string{
		"orders":           "safe",
		"app":              "risky",
		"jump":             "risky",
		"assets":           "safe",
		"customer_exports": "risky",
	}, labels)
}

// contextUploader fails like the SDK does when the request context is done
type contextUploader struct {
	s3manageriface.UploaderAPI
	uploads int
}

func (u *contextUploader) UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := io.ReadAll(input.Body); err != nil {
		return nil, err
	}
	u.uploads++
	return &s3manager.UploadOutput{Location: "s3://reports/" + aws.StringValue(input.Key)}, nil
}

func TestWriteReportAfterInterrupt(t *testing.T) {
	logging.SetOutput(io.Discard)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	newWriter := func(u *contextUploader) *output.Writer {
		return output.NewWriter(output.Config{
			Type:     output.S3,
			Format:   output.JSON,
			S3Bucket: "reports",
			Retry:    &output.RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond},
		}).WithUploader(u)
	}
	report := output.NewReport("test", []string{"main.tf"}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	direct := &contextUploader{}
	_, err := newWriter(direct).Write(ctx, report)
	require.Error(t, err)
	assert.Zero(t, direct.uploads)

	detached := &contextUploader{}
	where, err := writeReport(ctx, newWriter(detached), report)
	require.NoError(t, err)
	assert.Equal(t, 1, detached.uploads)
	assert.True(t, strings.HasPrefix(where, "s3://reports/"), where)
}
