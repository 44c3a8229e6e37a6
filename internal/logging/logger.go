// Package logging configures the slog loggers used across reelsight. Every
// handler it builds redacts provider keys and store credentials.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Logger is a slog.Logger whose level can change at runtime.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
	level     *slog.LevelVar
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// New creates a logger. The auto format picks the console handler on a
// terminal and JSON otherwise.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(cfg.Output, opts)
	case "text":
		h = slog.NewTextHandler(cfg.Output, opts)
	default:
		if isTerminal(cfg.Output) {
			h = NewConsoleHandler(cfg.Output, level)
		} else {
			h = slog.NewJSONHandler(cfg.Output, opts)
		}
	}

	sanitizer := NewSanitizer()
	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(h, sanitizer)),
		sanitizer: sanitizer,
		level:     level,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
		level:     new(slog.LevelVar),
	}
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLevel changes the minimum level. Loggers derived with With share it.
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// WithJob tags records with a job id.
func (l *Logger) WithJob(jobID string) *Logger {
	return l.With(KeyJob, jobID)
}

// WithStage tags records with a pipeline stage.
func (l *Logger) WithStage(stage string) *Logger {
	return l.With(KeyStage, stage)
}

// WithProvider tags records with an analysis provider.
func (l *Logger) WithProvider(provider string) *Logger {
	return l.With(KeyProvider, provider)
}

// With returns a logger with extra fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		sanitizer: l.sanitizer,
		level:     l.level,
	}
}

// Sanitize redacts credentials from s.
func (l *Logger) Sanitize(s string) string {
	return l.sanitizer.Sanitize(s)
}
