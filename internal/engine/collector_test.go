package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-router/internal/provider"
)

type fakeAdapter struct {
	quote provider.Quote
	err   error
	delay time.Duration
	panic bool
}

func (f *fakeAdapter) SupportsRoute(_, _, _ string) bool { return true }

func (f *fakeAdapter) GetQuote(ctx context.Context, _ provider.Request) (provider.Quote, error) {
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return provider.Quote{}, ctx.Err()
		}
	}
	return f.quote, f.err
}

func registered(id string, a provider.Adapter) provider.Registered {
	return provider.Registered{
		Descriptor: provider.Descriptor{ID: id, Name: id, Active: true},
		Adapter:    a,
	}
}

func testProviderRequest() provider.Request {
	return provider.Request{
		SourceChain:      "ethereum",
		DestinationChain: "arbitrum",
		SourceToken:      "USDC",
		Amount:           decimal.NewFromInt(1000),
	}
}

func TestCollectorProducesOneResultPerProvider(t *testing.T) {
	c := NewCollector(time.Second, zerolog.Nop())

	eligible := []provider.Registered{
		registered("fast", &fakeAdapter{quote: provider.Quote{OutputAmount: decimal.NewFromInt(990), FeeUSD: decimal.NewFromInt(10), EstimatedTimeSeconds: 60}}),
		registered("broken", &fakeAdapter{err: errors.New("route disabled")}),
		registered("cheap", &fakeAdapter{quote: provider.Quote{OutputAmount: decimal.NewFromInt(995), FeeUSD: decimal.NewFromInt(5), EstimatedTimeSeconds: 300}}),
	}

	results := c.Collect(context.Background(), testProviderRequest(), eligible)
	require.Len(t, results, 3)

	// Results come back in provider order regardless of completion order.
	assert.Equal(t, "fast", results[0].ProviderID)
	assert.Equal(t, "broken", results[1].ProviderID)
	assert.Equal(t, "cheap", results[2].ProviderID)

	assert.True(t, results[0].Supported)
	assert.False(t, results[1].Supported)
	assert.Equal(t, "route disabled", results[1].Error)
	assert.True(t, results[2].Supported)
}

func TestCollectorOneFailureDoesNotAbortBatch(t *testing.T) {
	c := NewCollector(time.Second, zerolog.Nop())

	eligible := []provider.Registered{
		registered("err", &fakeAdapter{err: errors.New("no liquidity")}),
		registered("ok", &fakeAdapter{quote: provider.Quote{OutputAmount: decimal.NewFromInt(1), EstimatedTimeSeconds: 1}}),
	}

	results := c.Collect(context.Background(), testProviderRequest(), eligible)
	require.Len(t, results, 2)
	assert.False(t, results[0].Supported)
	assert.True(t, results[1].Supported)
}

func TestCollectorTimesOutSlowProvider(t *testing.T) {
	c := NewCollector(50*time.Millisecond, zerolog.Nop())

	eligible := []provider.Registered{
		registered("slow", &fakeAdapter{delay: 2 * time.Second}),
		registered("quick", &fakeAdapter{quote: provider.Quote{OutputAmount: decimal.NewFromInt(1), EstimatedTimeSeconds: 1}}),
	}

	start := time.Now()
	results := c.Collect(context.Background(), testProviderRequest(), eligible)
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.False(t, results[0].Supported)
	assert.True(t, strings.HasPrefix(results[0].Error, "timeout after"), "got %q", results[0].Error)
	assert.True(t, results[1].Supported)

	// The batch settles at the per-provider timeout, not the adapter delay.
	assert.Less(t, elapsed, time.Second)
}

// stubbornAdapter sleeps without ever checking ctx.
type stubbornAdapter struct {
	sleep time.Duration
}

func (s *stubbornAdapter) SupportsRoute(_, _, _ string) bool { return true }

func (s *stubbornAdapter) GetQuote(_ context.Context, _ provider.Request) (provider.Quote, error) {
	time.Sleep(s.sleep)
	return provider.Quote{OutputAmount: decimal.NewFromInt(1)}, nil
}

func TestCollectorBoundsContextIgnoringAdapter(t *testing.T) {
	c := NewCollector(50*time.Millisecond, zerolog.Nop())

	eligible := []provider.Registered{
		registered("stubborn", &stubbornAdapter{sleep: 5 * time.Second}),
		registered("quick", &fakeAdapter{quote: provider.Quote{OutputAmount: decimal.NewFromInt(1), EstimatedTimeSeconds: 1}}),
	}

	start := time.Now()
	results := c.Collect(context.Background(), testProviderRequest(), eligible)
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.False(t, results[0].Supported)
	assert.True(t, strings.HasPrefix(results[0].Error, "timeout after"), "got %q", results[0].Error)
	assert.True(t, results[1].Supported)

	// The deadline settles the slot even though the adapter is still asleep.
	assert.Less(t, elapsed, time.Second)
}

func TestCollectorRecoversAdapterPanic(t *testing.T) {
	c := NewCollector(time.Second, zerolog.Nop())

	eligible := []provider.Registered{
		registered("panicky", &fakeAdapter{panic: true}),
	}

	results := c.Collect(context.Background(), testProviderRequest(), eligible)
	require.Len(t, results, 1)
	assert.False(t, results[0].Supported)
	assert.Contains(t, results[0].Error, "provider panic")
}
