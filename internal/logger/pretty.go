package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
)

// ComponentKey is the attribute PrettyHandler renders as a message prefix.
const ComponentKey = "component"

// PrettyHandler is a slog.Handler for terminals:
//
//	[TIME] LEVEL [component] message key=value ...
//
// Colors are emitted only when the writer is a terminal.
type PrettyHandler struct {
	opts  slog.HandlerOptions
	out   *lockedWriter
	color bool

	// prefix qualifies keys of attrs added after WithGroup.
	prefix string
	// attrs are already qualified with the prefix in effect when added.
	attrs     []slog.Attr
	component string
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(b)
	return err
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{out: &lockedWriter{w: w}, color: isTerminal(w)}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) paint(buf []byte, color, s string) []byte {
	if !h.color {
		return append(buf, s...)
	}
	buf = append(buf, color...)
	buf = append(buf, s...)
	return append(buf, colorReset...)
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.paint(buf, colorGray, "["+r.Time.Format(time.DateTime)+"]")
	buf = append(buf, ' ')
	buf = h.paint(buf, levelColor(r.Level)+colorBold, fmt.Sprintf("%-5s", r.Level.String()))
	buf = append(buf, ' ')

	component := h.component
	attrs := h.attrs
	if r.NumAttrs() > 0 {
		attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+r.NumAttrs())
		copy(attrs, h.attrs)
		r.Attrs(func(a slog.Attr) bool {
			if h.prefix == "" && isComponent(a) {
				component = a.Value.String()
				return true
			}
			if !a.Equal(slog.Attr{}) {
				attrs = append(attrs, qualify(h.prefix, a))
			}
			return true
		})
	}

	if component != "" {
		buf = h.paint(buf, colorGreen, "["+component+"]")
		buf = append(buf, ' ')
	}
	buf = append(buf, r.Message...)

	if len(attrs) > 0 {
		var kv []byte
		for _, a := range attrs {
			kv = append(kv, ' ')
			kv = appendAttr(kv, a)
		}
		buf = h.paint(buf, colorCyan, string(kv))
	}
	buf = append(buf, '\n')
	return h.out.write(buf)
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := h.clone()
	next.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(next.attrs, h.attrs)
	for _, a := range attrs {
		if h.prefix == "" && isComponent(a) {
			next.component = a.Value.String()
			continue
		}
		if !a.Equal(slog.Attr{}) {
			next.attrs = append(next.attrs, qualify(h.prefix, a))
		}
	}
	return next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = qualifyKey(h.prefix, name)
	return next
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		opts:      h.opts,
		out:       h.out,
		color:     h.color,
		prefix:    h.prefix,
		attrs:     h.attrs,
		component: h.component,
	}
}

func isComponent(a slog.Attr) bool {
	return a.Key == ComponentKey && a.Value.Kind() == slog.KindString
}

func qualifyKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func qualify(prefix string, a slog.Attr) slog.Attr {
	a.Key = qualifyKey(prefix, a.Key)
	return a
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorBlue
	default:
		return colorGray
	}
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()
	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	switch v.Kind() {
	case slog.KindString:
		buf = appendString(buf, v.String())
	case slog.KindTime:
		buf = v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindGroup:
		buf = append(buf, '{')
		for i, g := range v.Group() {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, g)
		}
		buf = append(buf, '}')
	default:
		if err, ok := v.Any().(error); ok {
			return appendString(buf, err.Error())
		}
		buf = appendString(buf, fmt.Sprint(v.Any()))
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}
