package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	PROGRESS // Special level that always displays
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case PROGRESS:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// Format represents the log output format
type Format int

const (
	Text Format = iota
	JSON
)

// Logger handles structured logging
type Logger struct {
	out      io.Writer
	level    Level
	format   Format
	logMutex sync.RWMutex
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  Level
	Format Format
}

var (
	defaultLogger = &Logger{
		out:      os.Stderr,
		level:    INFO,
		format:   Text,
		logMutex: sync.RWMutex{},
	}

	// Color definitions
	debugColor    = color.New(color.FgCyan)
	infoColor     = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	progressColor = color.New(color.FgBlue, color.Bold)
)

// Configure sets up the default logger
func Configure(config LogConfig) {
	defaultLogger.level = config.Level
	defaultLogger.format = config.Format
}

// SetOutput redirects the default logger, mainly for tests
func SetOutput(w io.Writer) {
	defaultLogger.logMutex.Lock()
	defer defaultLogger.logMutex.Unlock()
	defaultLogger.out = w
}

// New creates a standalone logger writing to w
func New(w io.Writer, config LogConfig) *Logger {
	return &Logger{
		out:    w,
		level:  config.Level,
		format: config.Format,
	}
}

// ParseLevel maps a level name onto a Level, defaulting to INFO
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// ParseFormat maps "json" onto JSON and anything else onto Text
func ParseFormat(name string) Format {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return JSON
	}
	return Text
}

type logEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

func (l *Logger) log(level Level, msg string, data interface{}) {
	// Always show PROGRESS level, otherwise respect level setting
	if level != PROGRESS && level < l.level {
		return
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")

	if l.format == JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   msg,
			Data:      data,
		}
		l.logMutex.Lock()
		defer l.logMutex.Unlock()
		if err := json.NewEncoder(l.out).Encode(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode log entry: %v\n", err)
		}
		return
	}

	// Text format
	var levelColor *color.Color
	switch level {
	case DEBUG:
		levelColor = debugColor
	case INFO:
		levelColor = infoColor
	case WARN:
		levelColor = warnColor
	case ERROR:
		levelColor = errorColor
	case PROGRESS:
		levelColor = progressColor
	default:
		levelColor = infoColor
	}

	var line strings.Builder
	levelStr := levelColor.Sprintf("%-5s", level.String())
	fmt.Fprintf(&line, "%s %s: %s", timestamp, levelStr, msg)
	if data != nil {
		fmt.Fprintf(&line, " %+v", data)
	}
	line.WriteByte('\n')

	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	io.WriteString(l.out, line.String())
}

func (l *Logger) Debug(msg string, data ...interface{}) {
	l.log(DEBUG, msg, firstOrNil(data))
}

func (l *Logger) Info(msg string, data ...interface{}) {
	l.log(INFO, msg, firstOrNil(data))
}

func (l *Logger) Warn(msg string, data ...interface{}) {
	l.log(WARN, msg, firstOrNil(data))
}

func (l *Logger) Error(msg string, err error, data ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.log(ERROR, msg, firstOrNil(data))
}

func (l *Logger) Progress(msg string, data interface{}) {
	l.log(PROGRESS, msg, data)
}

// firstOrNil returns the first element of data if present, nil otherwise
func firstOrNil(data []interface{}) interface{} {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// ScanStart logs the start of a scan over the given input files
func (l *Logger) ScanStart(files []string, resources int) {
	data := map[string]interface{}{
		"files":     files,
		"resources": resources,
	}
	l.Info("Starting scan operation", data)
}

// ResourceClassified logs the verdict for one resource at DEBUG level
func (l *Logger) ResourceClassified(resource, label string, score float64, findings int) {
	l.Debug("Resource classified", map[string]interface{}{
		"resource": resource,
		"label":    label,
		"score":    score,
		"findings": findings,
	})
}

// ModelFallback logs that the learned model could not be used for a resource
func (l *Logger) ModelFallback(resource, status string, err error) {
	data := map[string]interface{}{
		"resource":     resource,
		"model_status": status,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Warn("Learned model unavailable, using rule score", data)
}

// InputError logs a file that could not be read or parsed
func (l *Logger) InputError(path string, err error) {
	l.Error("Failed to load input", err, map[string]interface{}{
		"path": path,
	})
}

// ScanComplete logs the completion of a scan operation
func (l *Logger) ScanComplete(total, risky int) {
	data := map[string]interface{}{
		"total_resources": total,
		"risky_resources": risky,
	}
	l.Info("Scan operation complete", data)
}

// Default logger methods
func Debug(msg string, data ...interface{}) {
	defaultLogger.Debug(msg, data...)
}

func Info(msg string, data ...interface{}) {
	defaultLogger.Info(msg, data...)
}

func Warn(msg string, data ...interface{}) {
	defaultLogger.Warn(msg, data...)
}

func Error(msg string, err error, data ...interface{}) {
	defaultLogger.Error(msg, err, data...)
}

func Progress(msg string, data ...interface{}) {
	defaultLogger.Progress(msg, firstOrNil(data))
}

func ScanStart(files []string, resources int) {
	defaultLogger.ScanStart(files, resources)
}

func ResourceClassified(resource, label string, score float64, findings int) {
	defaultLogger.ResourceClassified(resource, label, score, findings)
}

func ModelFallback(resource, status string, err error) {
	defaultLogger.ModelFallback(resource, status, err)
}

func InputError(path string, err error) {
	defaultLogger.InputError(path, err)
}

func ScanComplete(total, risky int) {
	defaultLogger.ScanComplete(total, risky)
}
