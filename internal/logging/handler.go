package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Attribute keys with special treatment in console output.
const (
	KeyJob      = "job_id"
	KeyStage    = "stage"
	KeyProvider = "provider"
)

// SanitizingHandler redacts string attributes, error values and the message
// before passing records on.
type SanitizingHandler struct {
	next      slog.Handler
	sanitizer *Sanitizer
}

// NewSanitizingHandler wraps next.
func NewSanitizingHandler(next slog.Handler, sanitizer *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{next: next, sanitizer: sanitizer}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, h.sanitizer.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.clean(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = h.clean(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(cleaned), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) clean(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizer.Sanitize(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = h.clean(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		// provider errors often echo request URLs that carry keys
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, h.sanitizer.Sanitize(err.Error()))
		}
	}
	return a
}

// consoleStyles are resolved against the output's color profile, so plain
// writers get no escape codes.
type consoleStyles struct {
	time, job, key lipgloss.Style
	levels         map[slog.Level]lipgloss.Style
}

func newConsoleStyles(w io.Writer) consoleStyles {
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		time: r.NewStyle().Foreground(lipgloss.Color("8")),
		job:  r.NewStyle().Foreground(lipgloss.Color("5")),
		key:  r.NewStyle().Foreground(lipgloss.Color("6")),
		levels: map[slog.Level]lipgloss.Style{
			slog.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("8")),
			slog.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("4")),
			slog.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")),
			slog.LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

// ConsoleHandler writes one compact line per record for interactive use.
// The job id, when present, is pulled out front.
type ConsoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	styles consoleStyles
	job    string
	attrs  []slog.Attr // already qualified by group
	prefix string
}

// NewConsoleHandler creates a console handler filtered at level.
func NewConsoleHandler(w io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{mu: &sync.Mutex{}, w: w, level: level, styles: newConsoleStyles(w)}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	job := h.job
	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == KeyJob && h.prefix == "" {
			job = a.Value.String()
			return true
		}
		attrs = appendQualified(attrs, h.prefix, a)
		return true
	})

	var b strings.Builder
	b.WriteString(h.styles.time.Render(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	if job != "" {
		b.WriteString(h.styles.job.Render("[" + job + "]"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	for _, a := range attrs {
		fmt.Fprintf(&b, " %s=%v", h.styles.key.Render(a.Key), a.Value.Any())
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == KeyJob && h.prefix == "" {
			next.job = a.Value.String()
			continue
		}
		next.attrs = appendQualified(next.attrs, h.prefix, a)
	}
	return &next
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *ConsoleHandler) levelTag(level slog.Level) string {
	var tag string
	switch {
	case level >= slog.LevelError:
		tag, level = "ERR", slog.LevelError
	case level >= slog.LevelWarn:
		tag, level = "WRN", slog.LevelWarn
	case level >= slog.LevelInfo:
		tag, level = "INF", slog.LevelInfo
	default:
		tag, level = "DBG", slog.LevelDebug
	}
	return h.styles.levels[level].Render(tag)
}

func appendQualified(dst []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			dst = appendQualified(dst, p, g)
		}
		return dst
	}
	if a.Equal(slog.Attr{}) {
		return dst
	}
	return append(dst, slog.Attr{Key: prefix + a.Key, Value: a.Value.Resolve()})
}
