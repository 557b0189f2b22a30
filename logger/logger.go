// Package logger owns the process-wide zerolog logger. Components receive a
// child logger tagged with their name instead of logging globally.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the level and destination of the process logger
type Config struct {
	Level  string
	Debug  bool   // forces debug level, set by --verbose
	Output string // "stdout", "stderr" or a file path, appended to
	Pretty bool   // human readable console output instead of JSON
}

var (
	mu      sync.RWMutex
	current = zerolog.New(os.Stdout).With().Timestamp().Logger()
	logFile *os.File
)

// New builds a logger from cfg without touching the process logger. The
// returned file is non-nil when Output names a file; the caller closes it.
func New(cfg Config) (zerolog.Logger, *os.File, error) {
	level, err := levelFor(cfg)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	out, file, err := openOutput(cfg.Output)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), file, nil
}

// Init replaces the process logger. A previously opened log file is closed.
func Init(cfg Config) error {
	l, file, err := New(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := logFile
	current, logFile = l, file
	log.Logger = l
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close releases the log file, if any, and falls back to stdout
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	current = current.Output(os.Stdout)
	log.Logger = current
	return err
}

func levelFor(cfg Config) (zerolog.Level, error) {
	if cfg.Debug {
		return zerolog.DebugLevel, nil
	}
	if cfg.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

func openOutput(output string) (io.Writer, *os.File, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	current = current.Level(level)
	log.Logger = current
}

func GetLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithComponent returns a child logger tagged with the component name
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}

func Info() *zerolog.Event {
	l := GetLogger()
	return l.Info()
}

func Warn() *zerolog.Event {
	l := GetLogger()
	return l.Warn()
}
