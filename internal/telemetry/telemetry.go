// Package telemetry wraps log/slog with a single-line, mutex-guarded
// handler that fans out to a file and, optionally, stderr — the same
// shape as the sibling mainframe emulator's util/logger wrapper, sized
// down to what the scheduler and memory manager actually log.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a slog.Handler that renders one line per record ("time
// level msg key=value ...") and writes it to out under its own mutex,
// additionally echoing to stderr when debug is enabled.
type Handler struct {
	out   io.Writer
	inner slog.Handler
	mu    *sync.Mutex
	debug bool
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler builds a Handler writing to out, using opts for level and
// source-location behavior. debug controls whether every record is also
// echoed to stderr.
func NewHandler(out io.Writer, opts *slog.HandlerOptions, debug bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:   out,
		inner: slog.NewTextHandler(out, opts),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

// Enabled reports whether the given level is enabled for l.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// WithAttrs returns a Handler whose inner handler carries attrs. Handle
// renders only each record's own attributes, so attrs added here do not
// appear in the output.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

// WithGroup returns a Handler whose inner handler opens group name.
// Handle does not qualify attribute keys with the group, so output is
// the same as without it.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithGroup(name), mu: h.mu, debug: h.debug}
}

// Handle renders one record to a single line and writes it to out
// (and to stderr, if debug is set).
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006-01-02 15:04:05"), r.Level.String(), r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.String())
		return true
	})
	line := strings.Join(parts, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write([]byte(line))
	}
	if h.debug {
		_, _ = os.Stderr.Write([]byte(line))
	}
	return err
}

// New returns a ready-to-use *slog.Logger writing to w. When debug is
// true every record is additionally echoed to stderr.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(NewHandler(w, &slog.HandlerOptions{Level: level}, debug))
}
