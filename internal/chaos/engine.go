package chaos

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// fallbackFailureBody is used if the synthetic body cannot be marshaled.
const fallbackFailureBody = `{"error":"Chaos failure injected"}`

// Failure is a synthetic error response produced by the failure stage.
type Failure struct {
	StatusCode int
	Body       []byte
}

// Decision is the outcome of the pre-handler chaos stages for one request.
type Decision struct {
	// Failure is non-nil when the request must be short-circuited.
	Failure *Failure
	// Delay is the wait to apply before the handler runs.
	Delay time.Duration
	// Applied lists fault labels in evaluation order.
	Applied []string
}

// ShortCircuit reports whether the handler must be skipped.
func (d Decision) ShortCircuit() bool {
	return d.Failure != nil
}

// Engine evaluates chaos stages against an immutable Config.
// It holds no per-request state; randomness is supplied by the caller.
type Engine struct {
	config *Config
	stats  stats
	logger *zap.Logger
}

// NewEngine returns an engine for cfg. cfg must already be valid.
func NewEngine(cfg *Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{config: cfg, logger: logger}
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Stats returns a copy of the injection counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// NewSource returns a random generator for a single request, seeded from
// the operating system's secure entropy source.
func NewSource() *rand.Rand {
	var seed [32]byte
	_, _ = cryptorand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

// Evaluate runs the failure and delay stages. The returned decision either
// short-circuits the request or carries the wait to apply before the handler.
func (e *Engine) Evaluate(r *http.Request, rng *rand.Rand) Decision {
	e.stats.total.Add(1)

	var d Decision
	if f, ok := e.RollFailure(rng); ok {
		d.Failure = f
		d.Applied = append(d.Applied, string(ModeFailure))
		e.logger.Debug("chaos failure injected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status_code", f.StatusCode))
		return d
	}

	if delay, ok := e.RollDelay(rng); ok {
		d.Delay = delay
		d.Applied = append(d.Applied, string(ModeDelay))
		e.logger.Debug("chaos delay injected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("delay", delay))
	}
	return d
}

// RollFailure draws against failure_rate and, on a hit, builds the synthetic response.
func (e *Engine) RollFailure(rng *rand.Rand) (*Failure, bool) {
	cfg := e.config
	if !cfg.Has(ModeFailure) || rng.Float64() >= cfg.FailureRate {
		return nil, false
	}

	code := cfg.FailureCodes[rng.IntN(len(cfg.FailureCodes))]
	e.stats.mark(&e.stats.failed)
	return &Failure{StatusCode: code, Body: failureBody(code)}, true
}

// RollDelay draws against delay_rate and, on a hit, computes the wait.
// A hit with a zero wait still counts as an applied delay.
func (e *Engine) RollDelay(rng *rand.Rand) (time.Duration, bool) {
	cfg := e.config
	if !cfg.Has(ModeDelay) || rng.Float64() >= cfg.DelayRate {
		return 0, false
	}

	ms := cfg.DelayMs
	if cfg.DelayRandom {
		ms = rng.IntN(cfg.DelayMaxMs)
	}
	e.stats.mark(&e.stats.delayed)
	return time.Duration(ms) * time.Millisecond, true
}

// RollCorruption draws against corruption_rate.
func (e *Engine) RollCorruption(rng *rand.Rand) bool {
	cfg := e.config
	if !cfg.Has(ModeCorruption) || rng.Float64() >= cfg.CorruptionRate {
		return false
	}
	e.stats.mark(&e.stats.corrupted)
	return true
}

// ApplyCorruption rolls for corruption and, on a hit, returns the mangled body.
func (e *Engine) ApplyCorruption(body []byte, rng *rand.Rand) ([]byte, bool) {
	if !e.RollCorruption(rng) {
		return body, false
	}
	e.logger.Debug("chaos corruption injected",
		zap.String("corruption_type", string(e.config.CorruptionType)),
		zap.Int("body_size", len(body)))
	return Corrupt(body, e.config.CorruptionType, rng), true
}

// Corrupt transforms body according to kind. The input slice is not modified.
func Corrupt(body []byte, kind CorruptionType, rng *rand.Rand) []byte {
	switch kind {
	case CorruptEmpty:
		return []byte{}
	case CorruptTruncate:
		out := make([]byte, len(body)/2)
		copy(out, body)
		return out
	case CorruptGarbage:
		out := make([]byte, len(body))
		for i := range out {
			out[i] = byte(0x21 + rng.IntN(0x7E-0x21+1))
		}
		return out
	default:
		return body
	}
}

// Wait suspends the caller for d, returning early with ctx.Err() if ctx ends first.
func (e *Engine) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Header returns the X-Chaos value for applied, or "" when nothing should be sent.
func (e *Engine) Header(applied []string) string {
	if !e.config.InformHeader || len(applied) == 0 {
		return ""
	}
	return strings.Join(applied, ",")
}

type failurePayload struct {
	Error string `json:"error"`
	Chaos struct {
		Type       string `json:"type"`
		StatusCode int    `json:"status_code"`
	} `json:"chaos"`
}

func failureBody(code int) []byte {
	payload := failurePayload{Error: "Chaos failure injected"}
	payload.Chaos.Type = string(ModeFailure)
	payload.Chaos.StatusCode = code

	body, err := json.Marshal(payload)
	if err != nil {
		return []byte(fallbackFailureBody)
	}
	return body
}
