package config

import "runtime"

// GlobalConfig holds process-wide options bound to persistent CLI flags
type GlobalConfig struct {
	// Profile is the AWS profile used for S3 output and SageMaker scoring
	Profile string

	// MaxWorkers defines the maximum number of concurrent scans
	MaxWorkers int

	// LogFormat is the format for logging
	LogFormat string

	// LogLevel is the minimum level written to the log
	LogLevel string
}

// Config is the global configuration instance
var Config = &GlobalConfig{
	Profile:    "default",
	MaxWorkers: runtime.NumCPU(),
	LogFormat:  "text",
	LogLevel:   "INFO",
}
