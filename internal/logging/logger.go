// Package logging provides structured logging for the release pipeline.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatConsole renders human-readable, colored lines.
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per line (CI logs).
	FormatJSON Format = "json"
)

// Logger wraps zerolog with format-specific behavior.
type Logger struct {
	zlog   zerolog.Logger
	format Format
}

// NewLogger creates a new logger writing to w in the given format.
func NewLogger(w io.Writer, format Format) *Logger {
	l := &Logger{format: format}
	l.SetOutput(w)
	return l
}

// NewDefaultCLILogger creates a console logger on stdout.
// Stderr is reserved for the progress bar and failure reports.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stdout, FormatConsole)
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// library callers that don't care about output.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), format: FormatJSON}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Step returns a copy of the logger tagged with the pipeline step name.
func (l *Logger) Step(name string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("step", name).Logger(),
		format: l.format,
	}
}

// SetOutput changes the output writer for the logger.
// This is useful for redirecting logs above the progress bar.
func (l *Logger) SetOutput(w io.Writer) {
	if l.format == FormatJSON {
		l.zlog = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
