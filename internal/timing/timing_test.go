package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElapsedMs_Grows(t *testing.T) {
	tm := Start()
	time.Sleep(5 * time.Millisecond)

	first := tm.ElapsedMs()
	assert.GreaterOrEqual(t, first, 5.0)

	time.Sleep(time.Millisecond)
	assert.Greater(t, tm.ElapsedMs(), first)
}

func TestElapsedMs_SubMillisecond(t *testing.T) {
	tm := RequestTiming{start: time.Now().Add(-1500 * time.Microsecond)}

	ms := tm.ElapsedMs()
	assert.GreaterOrEqual(t, ms, 1.5)
	assert.NotEqual(t, float64(int64(ms)), ms, "elapsed should keep its fractional part")
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	tm := Start()
	ctx := WithTiming(context.Background(), tm)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tm.StartedAt(), got.StartedAt())
}
