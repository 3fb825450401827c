// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatPretty  = "pretty"
)

type Options struct {
	Level  string
	Format string
	// Writer defaults to stderr.
	Writer io.Writer
}

// New returns a logger with a timestamp on every event.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	switch opts.Format {
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case FormatJSON:
	case FormatPretty:
		w = NewPrettyJSONWriter(w)
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// PrettyJSONWriter re-indents each zerolog event for reading in a terminal.
// It is not meant for throughput.
type PrettyJSONWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrettyJSONWriter(w io.Writer) *PrettyJSONWriter {
	return &PrettyJSONWriter{w: w}
}

func (p *PrettyJSONWriter) Write(event []byte) (int, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(event), "", "  "); err != nil {
		// Not JSON; pass through unchanged.
		buf.Reset()
		buf.Write(event)
	} else {
		buf.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(event), nil
}
