package timing

import (
	"context"
	"time"
)

type contextKey string

const timingKey contextKey = "timing"

// RequestTiming holds the instant a request entered the pipeline.
// time.Now carries a monotonic reading, so Elapsed is immune to wall-clock jumps.
type RequestTiming struct {
	start time.Time
}

// Start anchors a new timing at the current instant.
func Start() RequestTiming {
	return RequestTiming{start: time.Now()}
}

// StartedAt returns the anchor instant.
func (t RequestTiming) StartedAt() time.Time {
	return t.start
}

// Elapsed returns the time since Start.
func (t RequestTiming) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ElapsedMs returns the elapsed time in milliseconds with sub-millisecond resolution.
func (t RequestTiming) ElapsedMs() float64 {
	return float64(t.Elapsed()) / float64(time.Millisecond)
}

// WithTiming attaches t to ctx.
func WithTiming(ctx context.Context, t RequestTiming) context.Context {
	return context.WithValue(ctx, timingKey, t)
}

// FromContext returns the request timing stored in ctx, if any.
func FromContext(ctx context.Context) (RequestTiming, bool) {
	t, ok := ctx.Value(timingKey).(RequestTiming)
	return t, ok
}
