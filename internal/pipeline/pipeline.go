package pipeline

import (
	"math/rand/v2"
	"net/http"

	"github.com/rumpus/rucho/internal/chaos"
	"github.com/rumpus/rucho/internal/timing"
)

// Phase says which side of the handler call a stage runs on.
type Phase int

const (
	BeforeHandler Phase = iota
	AfterHandler
)

// Outcome tells the runner how to proceed after a stage.
type Outcome int

const (
	// Continue runs the next stage.
	Continue Outcome = iota
	// ShortCircuit skips the handler; after-handler stages still run.
	ShortCircuit
	// Abandon ends the request without a response, e.g. the client left.
	Abandon
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case ShortCircuit:
		return "short_circuit"
	case Abandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name  string
	Phase Phase
	Run   func(ex *Exchange) Outcome
}

// Exchange is the per-request state handed from stage to stage.
type Exchange struct {
	Request  *http.Request
	Response *Recorder
	Timing   timing.RequestTiming
	Rand     *rand.Rand

	// Decision is set by the chaos evaluation stage.
	Decision chaos.Decision
	// Applied lists fault labels in the order they were applied.
	Applied []string
	// EndpointKey is the canonical metrics key for the request path.
	EndpointKey string

	shortCircuited bool
	handlerCalled  bool
}

// ShortCircuited reports whether a stage skipped the handler.
func (ex *Exchange) ShortCircuited() bool {
	return ex.shortCircuited
}

// HandlerCalled reports whether the handler ran.
func (ex *Exchange) HandlerCalled() bool {
	return ex.handlerCalled
}

// Runner drives an ordered list of stages around a single handler call.
type Runner struct {
	handler http.Handler
	stages  []Stage
	newRand func() *rand.Rand
}

// New returns a runner that calls handler between its BeforeHandler and
// AfterHandler stages. Stages run in the order given.
func New(handler http.Handler, stages ...Stage) *Runner {
	return &Runner{
		handler: handler,
		stages:  stages,
		newRand: chaos.NewSource,
	}
}

// WithRandSource replaces the per-request random source factory and
// returns the runner.
func (r *Runner) WithRandSource(fn func() *rand.Rand) *Runner {
	r.newRand = fn
	return r
}

// Stages returns the stage names in execution order.
func (r *Runner) Stages() []string {
	names := make([]string, 0, len(r.stages))
	for _, s := range r.stages {
		names = append(names, s.Name)
	}
	return names
}

// ServeHTTP implements http.Handler.
func (r *Runner) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ex := &Exchange{
		Request:  req,
		Response: newRecorder(),
		Rand:     r.newRand(),
	}

	for _, s := range r.stages {
		if s.Phase == AfterHandler {
			if !r.callHandler(ex) {
				return
			}
		} else if ex.shortCircuited {
			continue
		}

		switch s.Run(ex) {
		case ShortCircuit:
			ex.shortCircuited = true
		case Abandon:
			return
		}
	}
	if !r.callHandler(ex) {
		return
	}

	ex.Response.flush(w)
}

// callHandler invokes the handler once, unless a stage short-circuited.
// It returns false when the client went away while the handler ran; the
// request is then abandoned like a cancelled delay.
func (r *Runner) callHandler(ex *Exchange) bool {
	if ex.handlerCalled || ex.shortCircuited {
		return true
	}
	ex.handlerCalled = true
	r.handler.ServeHTTP(ex.Response, ex.Request)
	return ex.Request.Context().Err() == nil
}
