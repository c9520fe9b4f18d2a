package output

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/schollz/progressbar/v3"

	"iacsift/internal/awsutil"
	"iacsift/internal/logging"
	"iacsift/internal/output/html"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelay        = 2 * time.Second
	defaultPartSize          = 5 * 1024 * 1024 // 5MB
	defaultConcurrentUploads = 5
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// UploadConfig holds upload configuration
type UploadConfig struct {
	PartSize        int64
	ConcurrentParts int
}

// Type is the report destination
type Type string

const (
	Stdout     Type = "stdout"
	FileSystem Type = "filesystem"
	S3         Type = "s3"
)

// Format is the report encoding
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	HTML Format = "html"
)

// Config holds output configuration
type Config struct {
	Type      Type
	Format    Format
	S3Bucket  string
	S3Region  string
	OutputDir string
	Profile   string
	RoleARN   string
	Retry     *RetryConfig
	Upload    *UploadConfig
	// Stdout receives stdout reports; os.Stdout when nil
	Stdout io.Writer
	// ShowProgress draws an upload progress bar on stderr
	ShowProgress bool
}

// Writer delivers reports to stdout, the filesystem or S3
type Writer struct {
	config   Config
	uploader s3manageriface.UploaderAPI
}

// NewWriter creates a new output writer with default settings
func NewWriter(config Config) *Writer {
	if config.Retry == nil {
		config.Retry = &RetryConfig{
			MaxRetries: defaultMaxRetries,
			RetryDelay: defaultRetryDelay,
		}
	}
	if config.Upload == nil {
		config.Upload = &UploadConfig{
			PartSize:        defaultPartSize,
			ConcurrentParts: defaultConcurrentUploads,
		}
	}
	if config.Type == "" {
		config.Type = Stdout
	}
	if config.Format == "" {
		config.Format = Text
	}
	if config.Type == FileSystem && config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	return &Writer{config: config}
}

// WithUploader uses u for S3 instead of a session-backed uploader
func (w *Writer) WithUploader(u s3manageriface.UploaderAPI) *Writer {
	w.uploader = u
	return w
}

// Render encodes r in format
func Render(out io.Writer, r Report, format Format) error {
	switch format {
	case Text:
		return WriteText(out, r)
	case JSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		return nil
	case HTML:
		return html.Render(out, html.Meta{
			RunID:       r.RunID,
			GeneratedAt: r.GeneratedAt,
			Version:     r.Version,
			Files:       r.Files,
			InputErrors: r.InputErrors,
		}, r.Summary, r.Verdicts)
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// Write delivers r and returns where it went
func (w *Writer) Write(ctx context.Context, r Report) (string, error) {
	if w.config.Type == Stdout {
		return "stdout", Render(w.config.Stdout, r, w.config.Format)
	}

	var buf bytes.Buffer
	if err := Render(&buf, r, w.config.Format); err != nil {
		return "", err
	}

	data := buf.Bytes()
	if w.config.Format != HTML {
		compressed, err := compressData(data)
		if err != nil {
			return "", fmt.Errorf("failed to compress report: %w", err)
		}
		data = compressed
	}

	key := w.objectKey(r)
	switch w.config.Type {
	case FileSystem:
		target := filepath.Join(w.config.OutputDir, filepath.FromSlash(key))
		return target, writeToFileSystem(target, data)
	case S3:
		if err := w.writeToS3WithRetry(ctx, key, data); err != nil {
			return "", err
		}
		return fmt.Sprintf("s3://%s/%s", w.config.S3Bucket, key), nil
	}
	return "", fmt.Errorf("unsupported output type: %s", w.config.Type)
}

// objectKey is YYYY/MM/DD/HH-MM-SS-0700-<run>.<ext>
func (w *Writer) objectKey(r Report) string {
	t := r.GeneratedAt
	if t.IsZero() {
		t = time.Now()
	}

	ext := ".json.gz"
	switch w.config.Format {
	case HTML:
		ext = ".html"
	case Text:
		ext = ".txt.gz"
	}
	return path.Join(t.Format("2006/01/02"), t.Format("15-04-05-0700")+"-"+r.ShortID()+ext)
}

// compressData compresses the input data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeToFileSystem(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return nil
}

// writeToS3WithRetry writes data to an S3 bucket with retry logic
func (w *Writer) writeToS3WithRetry(ctx context.Context, key string, data []byte) error {
	if w.config.S3Bucket == "" {
		return fmt.Errorf("S3 bucket not specified")
	}

	var lastErr error
	for attempt := 0; attempt < w.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Warn("Retrying S3 upload", map[string]interface{}{
				"attempt":      attempt + 1,
				"max_attempts": w.config.Retry.MaxRetries,
				"error":        lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.Retry.RetryDelay):
			}
		}

		if err := w.writeToS3(ctx, key, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to upload to S3 after %d attempts: %w", w.config.Retry.MaxRetries, lastErr)
}

func (w *Writer) s3Uploader() (s3manageriface.UploaderAPI, error) {
	if w.uploader != nil {
		return w.uploader, nil
	}

	sess, err := awsutil.NewSession(w.config.Profile, "")
	if err != nil {
		return nil, err
	}
	if w.config.RoleARN != "" {
		if sess, err = awsutil.AssumeRole(sess, w.config.RoleARN); err != nil {
			return nil, err
		}
		if _, err := awsutil.VerifySession(sess); err != nil {
			return nil, fmt.Errorf("failed to verify assumed role: %w", err)
		}
	}
	if sess, err = awsutil.InRegion(sess, w.config.S3Region); err != nil {
		return nil, err
	}

	w.uploader = s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = w.config.Upload.PartSize
		u.Concurrency = w.config.Upload.ConcurrentParts
	})
	return w.uploader, nil
}

// writeToS3 uploads data with server-side encryption
func (w *Writer) writeToS3(ctx context.Context, key string, data []byte) error {
	uploader, err := w.s3Uploader()
	if err != nil {
		return err
	}

	var body io.Reader = bytes.NewReader(data)
	if w.config.ShowProgress {
		body = &progressReader{
			reader: body,
			bar: progressbar.NewOptions64(
				int64(len(data)),
				progressbar.OptionSetDescription("Uploading to S3..."),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(15),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			),
		}
	}

	contentType := "application/gzip"
	if w.config.Format == HTML {
		contentType = "text/html; charset=utf-8"
	}

	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:               aws.String(w.config.S3Bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ServerSideEncryption: aws.String("aws:kms"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader io.Reader
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if barErr := r.bar.Add(n); barErr != nil {
		logging.Debug("Failed to update progress bar", map[string]interface{}{
			"error": barErr.Error(),
		})
	}
	return n, err
}
