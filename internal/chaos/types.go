package chaos

import (
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Mode is a category of injected fault.
type Mode string

const (
	ModeFailure    Mode = "failure"
	ModeDelay      Mode = "delay"
	ModeCorruption Mode = "corruption"
)

// CorruptionType selects how a response body is mangled.
type CorruptionType string

const (
	CorruptEmpty    CorruptionType = "empty"
	CorruptTruncate CorruptionType = "truncate"
	CorruptGarbage  CorruptionType = "garbage"
)

// HeaderName is the informational response header listing applied faults.
const HeaderName = "X-Chaos"

// Config is built once at startup and shared read-only by every request.
// The engine trusts it; Validate is for the code that constructs it.
type Config struct {
	Modes []Mode `json:"modes"`

	FailureRate  float64 `json:"failure_rate,omitempty"`
	FailureCodes []int   `json:"failure_codes,omitempty"`

	DelayRate   float64 `json:"delay_rate,omitempty"`
	DelayMs     int     `json:"delay_ms,omitempty"`
	DelayRandom bool    `json:"delay_random,omitempty"` // delay_ms was "random"
	DelayMaxMs  int     `json:"delay_max_ms,omitempty"`

	CorruptionRate float64        `json:"corruption_rate,omitempty"`
	CorruptionType CorruptionType `json:"corruption_type,omitempty"`

	InformHeader bool `json:"inform_header"`
}

// Has reports whether mode m is enabled.
func (c *Config) Has(m Mode) bool {
	for _, mode := range c.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

var rateRule = validation.Min(0.01)

// Validate checks the ranges of every enabled mode.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Modes, validation.Required, validation.Each(
			validation.In(ModeFailure, ModeDelay, ModeCorruption),
		)),
		validation.Field(&c.FailureRate, validation.When(c.Has(ModeFailure),
			validation.Required, rateRule, validation.Max(1.0))),
		validation.Field(&c.FailureCodes, validation.When(c.Has(ModeFailure),
			validation.Required, validation.Each(validation.Min(400), validation.Max(599)))),
		validation.Field(&c.DelayRate, validation.When(c.Has(ModeDelay),
			validation.Required, rateRule, validation.Max(1.0))),
		validation.Field(&c.DelayMs, validation.Min(0)),
		validation.Field(&c.DelayMaxMs, validation.When(c.Has(ModeDelay) && c.DelayRandom,
			validation.Required, validation.Min(1))),
		validation.Field(&c.CorruptionRate, validation.When(c.Has(ModeCorruption),
			validation.Required, rateRule, validation.Max(1.0))),
		validation.Field(&c.CorruptionType, validation.When(c.Has(ModeCorruption),
			validation.Required, validation.In(CorruptEmpty, CorruptTruncate, CorruptGarbage))),
	)
}

// Stats tracks chaos injection counts for the process lifetime.
type Stats struct {
	TotalRequests     int64     `json:"total_requests"`
	FailedRequests    int64     `json:"failed_requests"`
	DelayedRequests   int64     `json:"delayed_requests"`
	CorruptedRequests int64     `json:"corrupted_requests"`
	LastInjectionTime time.Time `json:"last_injection_time,omitzero"`
}

type stats struct {
	total      atomic.Int64
	failed     atomic.Int64
	delayed    atomic.Int64
	corrupted  atomic.Int64
	lastInject atomic.Int64 // unix nanos
}

func (s *stats) mark(counter *atomic.Int64) {
	counter.Add(1)
	s.lastInject.Store(time.Now().UnixNano())
}

func (s *stats) snapshot() Stats {
	out := Stats{
		TotalRequests:     s.total.Load(),
		FailedRequests:    s.failed.Load(),
		DelayedRequests:   s.delayed.Load(),
		CorruptedRequests: s.corrupted.Load(),
	}
	if ns := s.lastInject.Load(); ns != 0 {
		out.LastInjectionTime = time.Unix(0, ns)
	}
	return out
}
