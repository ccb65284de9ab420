// Package logging builds the process logger: a slog handler that prints one
// line per record with a colored level name.
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// LevelCritical ranks above slog.LevelError and marks failures that end the run.
const LevelCritical = slog.Level(12)

// Options configures New.
type Options struct {
	Level   slog.Level
	NoColor bool
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

// Critical logs msg at LevelCritical.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelCritical, msg, args...)
}

// Component returns a logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return logger.With("component", name)
}

// colorEnabled reports whether w is a terminal and color was not disabled.
func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type levelStyles struct {
	debug, info, warn, err, critical lipgloss.Style
}

func newLevelStyles(w io.Writer, color bool) levelStyles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return levelStyles{
		debug:    r.NewStyle().Foreground(lipgloss.Color("6")),
		info:     r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		err:      r.NewStyle().Foreground(lipgloss.Color("1")),
		critical: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (s levelStyles) render(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return s.critical.Render("CRITICAL")
	case level >= slog.LevelError:
		return s.err.Render("ERROR")
	case level >= slog.LevelWarn:
		return s.warn.Render("WARNING")
	case level >= slog.LevelInfo:
		return s.info.Render("INFO")
	default:
		return s.debug.Render("DEBUG")
	}
}

// Handler is a slog.Handler producing lines like
//
//	12:04:05 INFO     [columns] column defined name=E2 expression="Energy * 2"
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	styles levelStyles
	attrs  []byte // pre-rendered WithAttrs output
	group  string
	comp   string
}

// NewHandler creates a Handler writing to w.
func NewHandler(w io.Writer, opts Options) *Handler {
	return &Handler{
		mu:     &sync.Mutex{},
		w:      w,
		level:  opts.Level,
		styles: newLevelStyles(w, colorEnabled(w, opts.NoColor)),
	}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	if !r.Time.IsZero() {
		buf.WriteString(r.Time.Format(time.TimeOnly))
		buf.WriteByte(' ')
	}

	label := h.styles.render(r.Level)
	buf.WriteString(label)
	if pad := 9 - lipgloss.Width(label); pad > 0 {
		buf.WriteString(strings.Repeat(" ", pad))
	}

	comp := h.comp
	var rest []byte
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.group == "" {
			comp = a.Value.String()
			return true
		}
		rest = appendAttr(rest, h.group, a)
		return true
	})

	if comp != "" {
		buf.WriteString("[" + comp + "] ")
	}
	buf.WriteString(r.Message)
	buf.Write(h.attrs)
	buf.Write(rest)
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]byte(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == "component" && h.group == "" {
			next.comp = a.Value.String()
			continue
		}
		next.attrs = appendAttr(next.attrs, h.group, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = qualify(h.group, name)
	return &next
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func appendAttr(buf []byte, group string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := qualify(group, a.Key)
		if a.Key == "" {
			inner = group
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, inner, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, qualify(group, a.Key)...)
	buf = append(buf, '=')
	return append(buf, formatValue(a.Value)...)
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = v.String()
		}
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

var _ slog.Handler = (*Handler)(nil)
