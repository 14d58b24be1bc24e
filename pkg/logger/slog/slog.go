// Package slog adapts a log/slog handler to the engine's logger.Logger, for
// embedders that already run an slog pipeline and want the engine's output
// in it.
package slog

import (
	"log/slog"

	"github.com/fridgenotes/notesync.go/pkg/logger"
)

// SlogHandler forwards engine log calls to a log/slog handler. The engine's
// key/value convention matches slog's, so arguments pass through untouched.
type SlogHandler struct {
	logger *slog.Logger
}

var _ logger.Logger = (*SlogHandler)(nil)

func New(h slog.Handler) *SlogHandler {
	return &SlogHandler{logger: slog.New(h)}
}

func (s *SlogHandler) Debug(msg string, args ...any) {
	s.logger.Debug(msg, args...)
}

func (s *SlogHandler) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

func (s *SlogHandler) Warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
}

func (s *SlogHandler) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}
