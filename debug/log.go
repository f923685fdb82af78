package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	level   = new(slog.LevelVar)
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// DefaultPath returns ~/.config/go-lightsynth/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-lightsynth", "debug.log")
}

// Enable starts debug logging to path (DefaultPath if empty)
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	logger.Info("=== Debug logging started ===", "category", "debug")

	return nil
}

// EnableWriter logs to w instead of a file (tests, stderr)
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetLevel sets the minimum level: "debug", "info", "warn", "error" (default "info")
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Logger returns the structured logger behind Log
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log writes an info message to the debug log
func Log(category, format string, args ...any) {
	write(slog.LevelInfo, category, format, args...)
}

// Trace writes a diagnostic message, only kept at debug level
func Trace(category, format string, args ...any) {
	write(slog.LevelDebug, category, format, args...)
}

// Warn writes a warning
func Warn(category, format string, args ...any) {
	write(slog.LevelWarn, category, format, args...)
}

func write(lvl slog.Level, category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || !logger.Enabled(context.Background(), lvl) {
		return
	}
	logger.Log(context.Background(), lvl, fmt.Sprintf(format, args...), "category", category)
	if file != nil {
		file.Sync() // flush immediately so we see logs even on crash
	}
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
