package build

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
)

// DefaultLogFilename is the name of the log file kept per network.
const DefaultLogFilename = "btc-cli.log"

// LogFilePath returns the log file of a network inside logDir. Every
// network gets its own subdirectory so mainnet and test runs never share
// rolled files.
func LogFilePath(logDir, network string) string {
	return filepath.Join(logDir, network, DefaultLogFilename)
}

// RotatingLogWriter persists log lines to a size-bounded set of log files.
// A CLI invocation is short lived, so rolled files are what keep a history
// of past broadcasts and verifications around.
type RotatingLogWriter struct {
	rotator *rotator.Rotator
	path    string
}

// NewRotatingLogWriter returns a writer that discards everything until
// InitLogRotator succeeds.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator opens logFile, creating its directory, and rolls it into
// compressed files once it outgrows cfg.MaxLogFileSize. Close flushes it.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	if !SupportedLogCompressor(cfg.Compressor) {
		return fmt.Errorf("unknown log compressor: %v", cfg.Compressor)
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator takes its threshold in KiB.
	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to open log file %v: %w", logFile, err)
	}

	var c rotator.Compressor
	switch cfg.Compressor {
	case Gzip:
		c = gzip.NewWriter(nil)

	case Zstd:
		c, err = zstd.NewWriter(nil)
		if err != nil {
			_ = rot.Close()
			return fmt.Errorf("failed to create zstd compressor: "+
				"%w", err)
		}
	}
	rot.SetCompressor(c, logCompressors[cfg.Compressor])

	r.rotator = rot
	r.path = logFile

	return nil
}

// Path returns the open log file, or "" before InitLogRotator.
func (r *RotatingLogWriter) Path() string {
	return r.path
}

// Write appends b to the log file. Before InitLogRotator it is a no-op.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.rotator == nil {
		return len(b), nil
	}

	return r.rotator.Write(b)
}

// Close flushes and closes the log file.
func (r *RotatingLogWriter) Close() error {
	if r.rotator == nil {
		return nil
	}

	return r.rotator.Close()
}
