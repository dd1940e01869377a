package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// WindowBuckets is the number of one-minute slots in the rolling window.
	WindowBuckets = 60
	// BucketDuration is the age at which the current bucket stops accepting requests.
	BucketDuration = time.Minute
	// Window is the span summed into the last-hour aggregate.
	Window = time.Hour
)

// timeBucket is one minute of counters. Buckets are recycled, never freed.
type timeBucket struct {
	start        time.Time // zero means never used
	requests     uint64
	successes    uint64
	failures     uint64
	endpointHits map[string]uint64
}

func (b *timeBucket) reset(now time.Time) {
	b.start = now
	b.requests = 0
	b.successes = 0
	b.failures = 0
	clear(b.endpointHits)
}

func (b *timeBucket) expired(now time.Time) bool {
	return b.start.IsZero() || now.Sub(b.start) >= BucketDuration
}

func (b *timeBucket) withinWindow(now time.Time) bool {
	return !b.start.IsZero() && now.Sub(b.start) < Window
}

// Registry is the process-wide request metrics store. One instance is
// created at startup and shared by every request; all writes go through Record.
type Registry struct {
	totalRequests  atomic.Uint64
	totalSuccesses atomic.Uint64
	totalFailures  atomic.Uint64

	hitsMu       sync.RWMutex
	endpointHits map[string]uint64

	windowMu sync.RWMutex
	buckets  [WindowBuckets]timeBucket
	current  int

	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, for simulated time in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry with all 60 buckets preallocated.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		endpointHits: make(map[string]uint64),
		now:          time.Now,
	}
	for i := range r.buckets {
		r.buckets[i].endpointHits = make(map[string]uint64)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsSuccess reports whether status counts as a success (2xx).
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsFailure reports whether status counts as a failure (4xx or 5xx).
func IsFailure(status int) bool {
	return status >= 400 && status < 600
}

// Record counts one completed request for endpoint with the final status.
// Statuses outside 2xx/4xx/5xx only increment the total.
func (r *Registry) Record(endpoint string, status int) {
	now := r.now()
	success, failure := IsSuccess(status), IsFailure(status)

	r.totalRequests.Add(1)
	if success {
		r.totalSuccesses.Add(1)
	} else if failure {
		r.totalFailures.Add(1)
	}

	r.hitsMu.Lock()
	r.endpointHits[endpoint]++
	r.hitsMu.Unlock()

	r.windowMu.Lock()
	defer r.windowMu.Unlock()

	if r.buckets[r.current].expired(now) {
		r.current = (r.current + 1) % WindowBuckets
		r.buckets[r.current].reset(now)
	}

	b := &r.buckets[r.current]
	b.requests++
	if success {
		b.successes++
	}
	if failure {
		b.failures++
	}
	b.endpointHits[endpoint]++
}

// Counts is one set of aggregate counters.
type Counts struct {
	TotalRequests uint64            `json:"total_requests"`
	Successes     uint64            `json:"successes"`
	Failures      uint64            `json:"failures"`
	EndpointHits  map[string]uint64 `json:"endpoint_hits"`
}

// Snapshot is the serialized metrics report.
type Snapshot struct {
	AllTime  Counts `json:"all_time"`
	LastHour Counts `json:"last_hour"`
}

// Snapshot reads the all-time counters and sums every bucket that started
// within the last hour. Fields are read independently, not as one atomic view.
func (r *Registry) Snapshot() Snapshot {
	now := r.now()

	// Window first: anything recorded after this read only grows the all-time side.
	lastHour := r.lastHour(now)

	allTime := Counts{
		TotalRequests: r.totalRequests.Load(),
		Successes:     r.totalSuccesses.Load(),
		Failures:      r.totalFailures.Load(),
	}
	r.hitsMu.RLock()
	allTime.EndpointHits = make(map[string]uint64, len(r.endpointHits))
	for k, v := range r.endpointHits {
		allTime.EndpointHits[k] = v
	}
	r.hitsMu.RUnlock()

	return Snapshot{AllTime: allTime, LastHour: lastHour}
}

func (r *Registry) lastHour(now time.Time) Counts {
	out := Counts{EndpointHits: make(map[string]uint64)}

	r.windowMu.RLock()
	defer r.windowMu.RUnlock()

	for i := range r.buckets {
		b := &r.buckets[i]
		if !b.withinWindow(now) {
			continue
		}
		out.TotalRequests += b.requests
		out.Successes += b.successes
		out.Failures += b.failures
		for k, v := range b.endpointHits {
			out.EndpointHits[k] += v
		}
	}
	return out
}
