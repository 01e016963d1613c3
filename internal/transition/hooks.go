package transition

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Hooks observes retry activity of a transition.
type Hooks interface {
	Conflict(ctx context.Context, name string, attempt int)
	Exhausted(ctx context.Context, name string, attempts int)
}

// NopHooks ignores retry activity. Run falls back to it when a Spec has no
// Hooks.
type NopHooks struct{}

func (NopHooks) Conflict(context.Context, string, int)  {}
func (NopHooks) Exhausted(context.Context, string, int) {}

// LogHooks writes conflicts to the logger and to the span in ctx.
type LogHooks struct {
	Logger *zap.Logger
}

func (h LogHooks) Conflict(ctx context.Context, name string, attempt int) {
	trace.SpanFromContext(ctx).AddEvent("cas_conflict", trace.WithAttributes(
		attribute.String("transition", name),
		attribute.Int("attempt", attempt),
	))
	if h.Logger != nil {
		h.Logger.Debug("transition conflict", zap.String("transition", name), zap.Int("attempt", attempt))
	}
}

func (h LogHooks) Exhausted(ctx context.Context, name string, attempts int) {
	trace.SpanFromContext(ctx).AddEvent("cas_exhausted", trace.WithAttributes(
		attribute.String("transition", name),
		attribute.Int("attempts", attempts),
	))
	if h.Logger != nil {
		h.Logger.Warn("transition exhausted", zap.String("transition", name), zap.Int("attempts", attempts))
	}
}
