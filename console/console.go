// Package console is the logging facade used across the framework.
//
// Log, Warn and Error back the console object visible to component
// scripts; structured callers use L() directly.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the process logger.
type Options struct {
	// Level is a zerolog level name ("debug", "info", "warn", ...).
	Level string
	// JSON disables the console writer and emits one JSON object per line.
	JSON    bool
	NoColor bool
	Out     io.Writer
}

var (
	mu     sync.RWMutex
	logger = newLogger(Options{Level: "info"})
)

func newLogger(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "cove").Logger()
}

// Configure replaces the process logger.
func Configure(opts Options) error {
	if opts.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err != nil {
			return fmt.Errorf("console: invalid log level %q: %w", opts.Level, err)
		}
	}
	l := newLogger(opts)
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// L returns the process logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Log writes args at info level.
func Log(args ...any) {
	L().Info().Msg(fmt.Sprint(args...))
}

// Warn writes args at warn level.
func Warn(args ...any) {
	L().Warn().Msg(fmt.Sprint(args...))
}

// Error writes args at error level.
func Error(args ...any) {
	L().Error().Msg(fmt.Sprint(args...))
}
