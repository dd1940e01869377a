package pipeline

import (
	"net/http"

	"github.com/rumpus/rucho/internal/chaos"
	"github.com/rumpus/rucho/internal/metrics"
	"github.com/rumpus/rucho/internal/timing"
)

// MetricsSink receives one observation per completed request.
type MetricsSink interface {
	Record(endpoint string, status int)
}

// Standard returns the canonical stage list:
//
//	timing, chaos.failure, chaos.delay, [handler], chaos.corruption, metrics, chaos.header
//
// Chaos stages are left out when engine is nil.
func Standard(engine *chaos.Engine, rec MetricsSink) []Stage {
	stages := []Stage{TimingStage()}
	if engine != nil {
		stages = append(stages, FailureStage(engine), DelayStage(engine))
		stages = append(stages, CorruptionStage(engine))
	}
	stages = append(stages, MetricsStage(rec))
	if engine != nil {
		stages = append(stages, HeaderStage(engine))
	}
	return stages
}

// TimingStage captures the request start and attaches it to the request context.
func TimingStage() Stage {
	return Stage{
		Name:  "timing",
		Phase: BeforeHandler,
		Run: func(ex *Exchange) Outcome {
			ex.Timing = timing.Start()
			ex.Request = ex.Request.WithContext(timing.WithTiming(ex.Request.Context(), ex.Timing))
			return Continue
		},
	}
}

// FailureStage rolls for a synthetic failure and the pending delay. A
// failure is written straight into the response buffer.
func FailureStage(engine *chaos.Engine) Stage {
	return Stage{
		Name:  "chaos.failure",
		Phase: BeforeHandler,
		Run: func(ex *Exchange) Outcome {
			ex.Decision = engine.Evaluate(ex.Request, ex.Rand)
			ex.Applied = append(ex.Applied, ex.Decision.Applied...)

			f := ex.Decision.Failure
			if f == nil {
				return Continue
			}
			ex.Response.Header().Set("Content-Type", "application/json")
			ex.Response.WriteHeader(f.StatusCode)
			_, _ = ex.Response.Write(f.Body)
			return ShortCircuit
		},
	}
}

// DelayStage suspends the request for the delay chosen by FailureStage.
// If the client goes away first the request is abandoned.
func DelayStage(engine *chaos.Engine) Stage {
	return Stage{
		Name:  "chaos.delay",
		Phase: BeforeHandler,
		Run: func(ex *Exchange) Outcome {
			if err := engine.Wait(ex.Request.Context(), ex.Decision.Delay); err != nil {
				return Abandon
			}
			return Continue
		},
	}
}

// CorruptionStage may replace the handler's buffered body. Synthetic
// failures are never corrupted.
func CorruptionStage(engine *chaos.Engine) Stage {
	return Stage{
		Name:  "chaos.corruption",
		Phase: AfterHandler,
		Run: func(ex *Exchange) Outcome {
			if ex.ShortCircuited() {
				return Continue
			}
			if body, ok := engine.ApplyCorruption(ex.Response.Body(), ex.Rand); ok {
				ex.Response.SetBody(body)
				ex.Applied = append(ex.Applied, string(chaos.ModeCorruption))
			}
			return Continue
		},
	}
}

// MetricsStage records the final status under the request's canonical endpoint key.
func MetricsStage(rec MetricsSink) Stage {
	return Stage{
		Name:  "metrics",
		Phase: AfterHandler,
		Run: func(ex *Exchange) Outcome {
			ex.EndpointKey = metrics.Normalize(ex.Request.URL.Path)
			rec.Record(ex.EndpointKey, ex.Response.Status())
			return Continue
		},
	}
}

// HeaderStage announces applied faults in the X-Chaos response header.
func HeaderStage(engine *chaos.Engine) Stage {
	return Stage{
		Name:  "chaos.header",
		Phase: AfterHandler,
		Run: func(ex *Exchange) Outcome {
			if v := engine.Header(ex.Applied); v != "" {
				ex.Response.Header().Set(chaos.HeaderName, v)
			}
			return Continue
		},
	}
}

var _ http.Handler = (*Runner)(nil)
