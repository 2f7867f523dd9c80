package build

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

// LogWriter is the io.Writer every subsystem logger ends up writing to. All
// narration is meant for a human watching the terminal, so it goes to the
// diagnostic stream (stderr) and never to stdout, which is reserved for
// command results. If a rotating log file has been set up, every line is
// mirrored into it as well.
type LogWriter struct {
	// Console is the stream human-readable log lines are written to. If
	// nil, os.Stderr is used.
	Console io.Writer

	// Rotator is the optional rotating log file. It is written to by the
	// Write method of the LogWriter type. This only needs to be set if
	// log lines should also be persisted to disk.
	Rotator *RotatingLogWriter
}

// Write writes the byte slice to the console and, if present, to the log
// rotator.
func (w *LogWriter) Write(b []byte) (int, error) {
	console := w.Console
	if console == nil {
		console = os.Stderr
	}
	_, _ = console.Write(b)

	if w.Rotator != nil {
		_, _ = w.Rotator.Write(b)
	}

	return len(b), nil
}

// NewSubLogger constructs a new subsystem log from the passed generator
// function. If no function is provided, logging for the subsystem will be
// disabled. Packages call this from their init functions with a nil
// generator so they stay silent until the binary hands them a real logger.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger != nil {
		return genSubLogger(subsystem)
	}

	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// SubLoggerManager owns the single logging backend of the binary and every
// subsystem logger created from it.
type SubLoggerManager struct {
	backend    *btclog.Backend
	subLoggers SubLoggers
}

// A compile time check to ensure SubLoggerManager implements the
// LeveledSubLogger interface.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager creates a manager whose backend writes to w.
func NewSubLoggerManager(w io.Writer) *SubLoggerManager {
	return &SubLoggerManager{
		backend:    btclog.NewBackend(w),
		subLoggers: make(SubLoggers),
	}
}

// GenSubLogger creates (or returns the already created) logger for the
// given subsystem tag. Its signature matches the generator expected by
// NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	if logger, ok := m.subLoggers[subsystem]; ok {
		return logger
	}

	logger := m.backend.Logger(subsystem)
	m.subLoggers[subsystem] = logger

	return logger
}

// SubLoggers returns the map of all registered subsystem loggers.
func (m *SubLoggerManager) SubLoggers() SubLoggers {
	return m.subLoggers
}

// SupportedSubsystems returns a sorted slice of the supported subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.subLoggers))
	for subsysID := range m.subLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func (m *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := m.subLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	for subsystemID := range m.subLoggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns a slice of strings containing the names
	// of the supported subsystems. Should ideally correspond to the keys
	// of the subsystem logger map and be sorted.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly on the given logger. An appropriate error is returned
// if anything is invalid.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	// Split at the delimiter.
	levels := strings.Split(level, ",")
	if len(levels) == 0 {
		return fmt.Errorf("invalid log level: %v", level)
	}

	// If the first entry has no =, treat is as the log level for all
	// subsystems.
	globalLevel := levels[0]
	if !strings.Contains(globalLevel, "=") {
		if !validLogLevel(globalLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, globalLevel)
		}

		logger.SetLogLevels(globalLevel)

		// The rest will target specific subsystems.
		levels = levels[1:]
	}

	for _, logLevelPair := range levels {
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			str := "the specified debug level has an invalid " +
				"format [%v] -- use format subsystem1=level1," +
				"subsystem2=level2"
			return fmt.Errorf(str, logLevelPair)
		}
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := logger.SubLoggers()[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems are %v"
			return fmt.Errorf(
				str, subsysID, logger.SupportedSubsystems(),
			)
		}

		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		logger.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}
