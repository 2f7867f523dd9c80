package build

import (
	"fmt"
	"strings"
)

const (
	// Gzip is the default compressor.
	Gzip = "gzip"

	// Zstd is the zstd compressor.
	Zstd = "zstd"

	defaultLogCompressor = Gzip

	// DefaultMaxLogFiles is the default maximum number of log files to
	// keep.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the default maximum log file size in MB.
	DefaultMaxLogFileSize = 10
)

// logCompressors maps the identifier for each supported compression algorithm
// to the extension used for the compressed log files.
var logCompressors = map[string]string{
	Gzip: "gz",
	Zstd: "zst",
}

// SupportedLogCompressor returns whether or not logCompressor is a supported
// compression algorithm for log files.
func SupportedLogCompressor(logCompressor string) bool {
	_, ok := logCompressors[logCompressor]

	return ok
}

// LogConfig holds logging configuration options.
type LogConfig struct {
	// DebugLevel is either a global level or a list of
	// <subsystem>=<level> pairs.
	DebugLevel string
	Quiet      bool
	File       *FileLoggerConfig
}

// Validate validates the LogConfig struct values.
func (c *LogConfig) Validate() error {
	if c.DebugLevel != "" && !validLogLevel(c.DebugLevel) &&
		!hasSubsystemPair(c.DebugLevel) {

		return fmt.Errorf("invalid debug level: %v", c.DebugLevel)
	}

	if !SupportedLogCompressor(c.File.Compressor) {
		return fmt.Errorf("invalid log compressor: %v",
			c.File.Compressor)
	}

	if c.File.MaxLogFiles < 0 {
		return fmt.Errorf("max log files must not be negative")
	}

	if c.File.MaxLogFileSize <= 0 {
		return fmt.Errorf("max log file size must be positive")
	}

	return nil
}

// hasSubsystemPair reports whether the level string looks like a list of
// subsystem=level pairs. Full validation happens in ParseAndSetDebugLevels
// once the subsystems are registered.
func hasSubsystemPair(level string) bool {
	return strings.Contains(level, "=")
}

// DefaultLogConfig returns the default logging config options.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		DebugLevel: "info",
		File: &FileLoggerConfig{
			Compressor:     defaultLogCompressor,
			MaxLogFiles:    DefaultMaxLogFiles,
			MaxLogFileSize: DefaultMaxLogFileSize,
		},
	}
}

// FileLoggerConfig holds the options of the rotating log file. The file is
// only written when a log directory is configured.
type FileLoggerConfig struct {
	// Compressor is gzip or zstd.
	Compressor string

	// MaxLogFiles is the number of rotated files kept, 0 disables
	// rotation.
	MaxLogFiles int

	// MaxLogFileSize is in MB.
	MaxLogFileSize int
}
