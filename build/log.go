package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogType is a bit flag that is used to dictate the type of logging infra
// that is instantiated when NewRotatingLogWriter is invoked.
type LogType byte

const (
	// LogTypeNone disables all logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut directs all logging to stdout.
	LogTypeStdOut

	// LogTypeDefault directs logging to both stdout and a rotating log
	// file.
	LogTypeDefault
)

// LogWriter is a stub type that's returned by NewRotatingLogWriter and
// implements the io.Writer interface. Each byte slice written to it is
// fanned out to the rotating file logger and stdout, if enabled.
type LogWriter struct {
	RotatorLogFile *rotator.Rotator
}

// Write writes the byte slice to both the configured log rotator and, unless
// overridden by a build tag, standard out.
func (w *LogWriter) Write(b []byte) (int, error) {
	if w.RotatorLogFile != nil {
		_, _ = w.RotatorLogFile.Write(b)
	}
	return os.Stdout.Write(b)
}

// RotatingLogWriter is a wrapper around the logging subsystem that logs to
// both a rotating log file and, optionally, stdout. Subsystems can obtain a
// slog.Logger via GenSubLogger and register it with RegisterSubLogger so
// verbosity can be changed on the fly for a single subsystem.
type RotatingLogWriter struct {
	// backendLog is the backend the individual sub loggers are hooked
	// into.
	backendLog *slog.Backend

	// logWriter implements the io.Writer interface that is passed into
	// the backend.
	logWriter *LogWriter

	// subsystemLoggers keeps track of the sub loggers per subsystem so
	// their levels can be changed at runtime.
	subsystemLoggers map[string]slog.Logger

	mu sync.Mutex
}

// NewRotatingLogWriter creates a new file rotating log writer. InitLogRotator
// must be called afterward to set up the log file rotator, or all output is
// written only to stdout.
func NewRotatingLogWriter() *RotatingLogWriter {
	logWriter := &LogWriter{}
	return &RotatingLogWriter{
		backendLog:       slog.NewBackend(logWriter),
		logWriter:        logWriter,
		subsystemLoggers: make(map[string]slog.Logger),
	}
}

// GenSubLogger creates a new sub logger for a particular subsystem. This is
// used to satisfy the interface requirements of the logClosures in chained
// dependencies.
func (r *RotatingLogWriter) GenSubLogger(tag string) slog.Logger {
	return r.backendLog.Logger(tag)
}

// RegisterSubLogger registers a new subsystem logger so that its logging
// level can be adjusted later via SetLogLevel.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subsystemLoggers[subsystem] = logger
}

// InitLogRotator initializes the log file rotator to write logs to logFile
// and create roll files in the same directory. It must be called before the
// backend is used, or each write will fall through to stdout only.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxRolls int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rl, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	r.logWriter.RotatorLogFile = rl
	return nil
}

// SetLogLevel assigns explicitly the supported log level for a particular
// (registered) subsystem. The level, if valid, is applied to the
// corresponding subsystem logger.
func (r *RotatingLogWriter) SetLogLevel(subsystemID string, logLevel string) {
	r.mu.Lock()
	logger, ok := r.subsystemLoggers[subsystemID]
	r.mu.Unlock()
	if !ok {
		return
	}

	level, ok := slog.LevelFromString(logLevel)
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the same log level across every registered subsystem.
func (r *RotatingLogWriter) SetLogLevels(logLevel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	level, ok := slog.LevelFromString(logLevel)
	if !ok {
		return
	}
	for _, logger := range r.subsystemLoggers {
		logger.SetLevel(level)
	}
}

// NewSubLogger constructs a new slog.Logger for subsystem, backed by genLogger
// if one is supplied, or a disabled logger otherwise. This mirrors the
// placeholder-then-replace pattern used by package level loggers declared
// before the root rotating writer exists.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}
	return genLogger(subsystem)
}
