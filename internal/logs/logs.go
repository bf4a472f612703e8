// Package logs builds the process logger: text on stderr, optionally fanned
// out to a JSON file.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// JSONPath, when set, receives every record as a JSON line.
	JSONPath string
	// Writer replaces stderr for the text handler.
	Writer io.Writer
}

// Logger wraps the slog logger with the level it was built with and the file
// it may be writing to.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *os.File
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q (want debug|info|warn|error)", s)
	}
}

func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
	}

	var file *os.File
	if opts.JSONPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.JSONPath), 0o755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		file, err = os.OpenFile(opts.JSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}

	return &Logger{
		Logger: slog.New(slogmulti.Fanout(handlers...)),
		level:  level,
		file:   file,
	}, nil
}

// SetLevel changes the level of every handler at once.
func (l *Logger) SetLevel(lvl slog.Level) { l.level.Set(lvl) }

func (l *Logger) Level() slog.Level { return l.level.Level() }

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
