package viewfinder

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/viewfinder/internal/gpu"
)

// nopHandler drops every record. A viewfinder renders at camera frame
// rate, so the silent default must not even format per-frame attributes.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger routes viewfinder diagnostics to l. Records from the GPU layer
// carry a layer=gpu attribute. nil silences the renderer again, which is
// the initial state. SetLogger may be called while frames are rendering.
//
// What is logged:
//   - Debug: format switches with their profile category and geometry,
//     shader stage builds, texture slot (re)creation, empty frames
//   - Info: renderer creation and close, the adapter of a shared device
//   - Warn: rejected formats or geometries, frames that were not drawn
//
// Frame-level records carry the pixel format as "format" so a capture
// session can be followed with a single filter:
//
//	viewfinder.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
//	    &slog.HandlerOptions{Level: slog.LevelDebug})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
}

// Logger returns the logger set by SetLogger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
