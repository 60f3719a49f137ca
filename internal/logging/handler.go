package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler is the slog.Handler behind every logger the manager hands out.
// It forwards to an inner handler held in an atomic pointer, so Upgrade can
// retarget all existing loggers from the bootstrap sink to the full fanout
// mid-flight.
type swapHandler struct {
	inner atomic.Pointer[slog.Handler]
}

func newSwapHandler(h slog.Handler) *swapHandler {
	s := &swapHandler{}
	s.inner.Store(&h)
	return s
}

// Swap retargets the handler. Safe to call concurrently with logging.
func (s *swapHandler) Swap(h slog.Handler) {
	s.inner.Store(&h)
}

func (s *swapHandler) load() slog.Handler {
	return *s.inner.Load()
}

func (s *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.load().Enabled(ctx, level)
}

func (s *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.load().Handle(ctx, r)
}

// WithAttrs and WithGroup derive new swap handlers so derived loggers keep
// following later Swap calls on their own inner handler.
func (s *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSwapHandler(s.load().WithAttrs(attrs))
}

func (s *swapHandler) WithGroup(name string) slog.Handler {
	return newSwapHandler(s.load().WithGroup(name))
}
