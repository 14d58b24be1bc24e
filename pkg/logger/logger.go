// Package logger defines the minimal structured logging surface shared by
// every component of the sync engine, along with a zerolog-backed default.
package logger

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Logger accepts a message followed by alternating key/value pairs,
// in the style of log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New returns a Logger writing structured JSON lines to w.
func New(w io.Writer) Logger {
	l := zerolog.New(w).With().Timestamp().Logger()
	return &zerologLogger{l: l}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, args ...any) { z.emit(z.l.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { z.emit(z.l.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { z.emit(z.l.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { z.emit(z.l.Error(), msg, args) }

func (z *zerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
