package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Formats accepted by Setup.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the process wide zerolog logger.
type Options struct {
	Level   string
	Format  string
	NoColor bool
	Output  io.Writer
}

// Setup configures the global zerolog logger and returns an adapter for it.
func Setup(opts Options) (ZLogger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return ZLogger{}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.RFC3339,
		}
	case FormatJSON:
	default:
		return ZLogger{}, fmt.Errorf("invalid log format %q", opts.Format)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return NewZLogger(log.Logger), nil
}
