package gpu

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler keeps the per-frame upload and draw path free of logging cost
// until a logger is installed.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// slogger returns the logger for pipeline, texture and submission records.
func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger installs l for the GPU layer, tagging its records with
// layer=gpu. nil silences the layer.
func SetLogger(l *slog.Logger) {
	if l == nil {
		loggerPtr.Store(slog.New(nopHandler{}))
		return
	}
	loggerPtr.Store(l.With("layer", "gpu"))
}
