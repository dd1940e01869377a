package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for rolling-window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewRegistry_Zero(t *testing.T) {
	reg := NewRegistry()
	snap := reg.Snapshot()

	assert.Zero(t, snap.AllTime.TotalRequests)
	assert.Zero(t, snap.AllTime.Successes)
	assert.Zero(t, snap.AllTime.Failures)
	assert.Empty(t, snap.AllTime.EndpointHits)
	assert.Zero(t, snap.LastHour.TotalRequests)
	assert.Len(t, reg.buckets, WindowBuckets)
}

func TestRecord_Classification(t *testing.T) {
	tests := []struct {
		status    int
		successes uint64
		failures  uint64
	}{
		{200, 1, 0},
		{201, 1, 0},
		{299, 1, 0},
		{301, 0, 0},
		{302, 0, 0},
		{404, 0, 1},
		{429, 0, 1},
		{500, 0, 1},
		{599, 0, 1},
		{100, 0, 0},
		{600, 0, 0},
	}

	for _, tt := range tests {
		reg := NewRegistry()
		reg.Record("/x", tt.status)

		snap := reg.Snapshot()
		assert.EqualValues(t, 1, snap.AllTime.TotalRequests, "status %d", tt.status)
		assert.Equal(t, tt.successes, snap.AllTime.Successes, "status %d", tt.status)
		assert.Equal(t, tt.failures, snap.AllTime.Failures, "status %d", tt.status)
		assert.Equal(t, tt.successes, snap.LastHour.Successes, "status %d", tt.status)
		assert.Equal(t, tt.failures, snap.LastHour.Failures, "status %d", tt.status)
	}
}

func TestRecord_MultipleEndpoints(t *testing.T) {
	reg := NewRegistry()
	reg.Record("/get", 200)
	reg.Record("/get", 200)
	reg.Record("/post", 201)
	reg.Record("/delete", 500)

	snap := reg.Snapshot()
	assert.EqualValues(t, 4, snap.AllTime.TotalRequests)
	assert.EqualValues(t, 3, snap.AllTime.Successes)
	assert.EqualValues(t, 1, snap.AllTime.Failures)
	assert.Equal(t, map[string]uint64{"/get": 2, "/post": 1, "/delete": 1}, snap.AllTime.EndpointHits)
	assert.Equal(t, snap.AllTime.EndpointHits, snap.LastHour.EndpointHits)
}

func TestRecord_Concurrent(t *testing.T) {
	reg := NewRegistry()
	keys := []string{"/get", "/post", "/status/:code"}

	const workers = 50
	const perWorker = 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				reg.Record(keys[(w+i)%len(keys)], 200)
			}
		}(w)
	}

	// Readers run alongside writers; the window must never outgrow all-time.
	done := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
				assertWindowWithinAllTime(t, reg.Snapshot())
			}
		}
	}()

	wg.Wait()
	close(done)
	readers.Wait()

	const n = workers * perWorker
	snap := reg.Snapshot()
	assert.EqualValues(t, n, snap.AllTime.TotalRequests)
	assert.EqualValues(t, n, snap.AllTime.Successes)
	assert.Zero(t, snap.AllTime.Failures)

	var sum uint64
	for _, v := range snap.AllTime.EndpointHits {
		sum += v
	}
	assert.EqualValues(t, n, sum)
	assert.Len(t, snap.AllTime.EndpointHits, len(keys))
	assert.EqualValues(t, n, snap.LastHour.TotalRequests)
}

func TestRollingWindow_BucketRotation(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now))

	statuses := []int{200, 201, 302, 404, 500}
	for i := 0; i < 70; i++ {
		reg.Record("/get", statuses[i%len(statuses)])
	}
	first := reg.current
	require.EqualValues(t, 70, reg.buckets[first].requests)
	assert.EqualValues(t, 70, reg.Snapshot().AllTime.TotalRequests)

	clock.Advance(61 * time.Second)
	for i := 0; i < 30; i++ {
		reg.Record("/post", 200)
	}

	second := reg.current
	require.NotEqual(t, first, second)
	assert.EqualValues(t, 30, reg.buckets[second].requests)
	assert.EqualValues(t, 30, reg.buckets[second].successes)
	assert.Equal(t, map[string]uint64{"/post": 30}, reg.buckets[second].endpointHits)
	assert.EqualValues(t, 70, reg.buckets[first].requests, "previous bucket keeps its counts")

	snap := reg.Snapshot()
	assert.EqualValues(t, 100, snap.AllTime.TotalRequests)
	assert.EqualValues(t, 100, snap.LastHour.TotalRequests)
	assert.EqualValues(t, 70, snap.LastHour.EndpointHits["/get"])
	assert.EqualValues(t, 30, snap.LastHour.EndpointHits["/post"])

	// The first bucket ages out of the hour before the second one.
	clock.Advance(time.Hour - 30*time.Second)
	snap = reg.Snapshot()
	assert.EqualValues(t, 100, snap.AllTime.TotalRequests)
	assert.EqualValues(t, 30, snap.LastHour.TotalRequests)
	assert.NotContains(t, snap.LastHour.EndpointHits, "/get")

	clock.Advance(time.Minute)
	snap = reg.Snapshot()
	assert.EqualValues(t, 100, snap.AllTime.TotalRequests)
	assert.Zero(t, snap.LastHour.TotalRequests)
	assert.Empty(t, snap.LastHour.EndpointHits)
}

func TestRollingWindow_SameBucketWithinMinute(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now))

	reg.Record("/get", 200)
	idx := reg.current
	clock.Advance(59 * time.Second)
	reg.Record("/get", 200)

	assert.Equal(t, idx, reg.current)
	assert.EqualValues(t, 2, reg.buckets[idx].requests)

	clock.Advance(time.Second)
	reg.Record("/get", 200)
	assert.Equal(t, (idx+1)%WindowBuckets, reg.current, "a bucket 60s old is replaced")
}

func TestRollingWindow_WrapsAndRecycles(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now))

	// Two hours of one request per minute: every slot is reused at least once.
	for i := 0; i < 2*WindowBuckets; i++ {
		reg.Record("/get", 200)
		clock.Advance(time.Minute)
	}

	snap := reg.Snapshot()
	assert.EqualValues(t, 2*WindowBuckets, snap.AllTime.TotalRequests)
	assert.LessOrEqual(t, snap.LastHour.TotalRequests, uint64(WindowBuckets))
	assertWindowWithinAllTime(t, snap)
	for i := range reg.buckets {
		assert.LessOrEqual(t, reg.buckets[i].requests, uint64(1))
	}
}

func assertWindowWithinAllTime(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.LessOrEqual(t, snap.LastHour.TotalRequests, snap.AllTime.TotalRequests)
	assert.LessOrEqual(t, snap.LastHour.Successes, snap.AllTime.Successes)
	assert.LessOrEqual(t, snap.LastHour.Failures, snap.AllTime.Failures)
	for k, v := range snap.LastHour.EndpointHits {
		assert.LessOrEqual(t, v, snap.AllTime.EndpointHits[k], "endpoint %s", k)
	}
}
