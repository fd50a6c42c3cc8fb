package geocode_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/geocode"
)

type fakeResolver struct {
	calls  int
	result geocode.Result
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, lat, lng float64) (geocode.Result, error) {
	f.calls++
	return f.result, f.err
}

func TestThrottledResolverDelegates(t *testing.T) {
	fake := &fakeResolver{result: geocode.Result{City: "Scranton", State: "PA", Confidence: "high"}}
	r := geocode.NewThrottledResolver(fake)

	res, err := r.Resolve(context.Background(), 41.4, -75.6)
	require.NoError(t, err)
	assert.Equal(t, "Scranton", res.City)
	assert.Equal(t, 1, fake.calls)
}

func TestThrottledResolverRespectsRateLimit(t *testing.T) {
	fake := &fakeResolver{result: geocode.Result{City: "A"}}
	r := geocode.NewThrottledResolver(fake)

	start := time.Now()
	_, err := r.Resolve(context.Background(), 0, 0)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), 0, 0)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Equal(t, 2, fake.calls)
}

func TestThrottledResolverPropagatesContextCancel(t *testing.T) {
	fake := &fakeResolver{result: geocode.Result{}}
	r := geocode.NewThrottledResolver(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, 0, 0)
	assert.Error(t, err)
}
