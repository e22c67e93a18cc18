package reliability_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-router/internal/config"
	"bridge-router/internal/reliability"
	"bridge-router/internal/storage"
)

func testReliabilityConfig() config.ReliabilityConfig {
	return config.ReliabilityConfig{
		MinAttempts:        10,
		TimeoutPenaltyRate: 10,
		TimeoutPenaltyCap:  5,
		HighTierCutoff:     95,
		MediumTierCutoff:   85,
		RankingPenalty:     20,
		DefaultWindowMode:  "transaction_count",
		DefaultWindowSize:  100,
	}
}

func testRoute() reliability.Route {
	return reliability.Route{Provider: "hopway", SourceChain: "ethereum", DestinationChain: "arbitrum"}
}

func newTestAdjuster(t *testing.T) (*reliability.Adjuster, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return reliability.NewAdjuster(testReliabilityConfig(), mem, mem, zerolog.Nop()), mem
}

// seedEvents appends count events of each outcome, newest last, spaced one
// minute apart so the recency order is unambiguous.
func seedEvents(t *testing.T, adj *reliability.Adjuster, route reliability.Route, counts map[reliability.Outcome]int) {
	t.Helper()
	at := time.Now().UTC().Add(-24 * time.Hour)
	for _, outcome := range []reliability.Outcome{
		reliability.OutcomeSuccess,
		reliability.OutcomeFailed,
		reliability.OutcomeTimeout,
		reliability.OutcomeCancelled,
	} {
		for i := 0; i < counts[outcome]; i++ {
			at = at.Add(time.Minute)
			err := adj.RecordEvent(context.Background(), reliability.Event{
				Route:      route,
				Outcome:    outcome,
				OccurredAt: at,
				Duration:   90 * time.Second,
			})
			require.NoError(t, err)
		}
	}
}

func TestRecordEventValidation(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	ctx := context.Background()

	err := adj.RecordEvent(ctx, reliability.Event{Outcome: reliability.OutcomeSuccess})
	assert.Error(t, err)

	err = adj.RecordEvent(ctx, reliability.Event{Route: testRoute(), Outcome: "exploded"})
	assert.Error(t, err)

	err = adj.RecordEvent(ctx, reliability.Event{Route: testRoute(), Outcome: reliability.OutcomeCancelled})
	assert.NoError(t, err)
}

func TestGetReliabilityHighTier(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 97,
		reliability.OutcomeFailed:  2,
		reliability.OutcomeTimeout: 1,
	})

	metric, err := adj.GetReliability(context.Background(), testRoute(), reliability.Window{})
	require.NoError(t, err)

	assert.Equal(t, 100, metric.TotalAttempts)
	assert.Equal(t, 97, metric.SuccessfulCount)
	assert.InDelta(t, 97, metric.ReliabilityPercent, 1e-9)
	// One timeout in 100: penalty min(0.01*10, 5) = 0.1.
	assert.InDelta(t, 96.9, metric.ReliabilityScore, 1e-9)
	assert.Equal(t, reliability.TierHigh, metric.Tier)
	assert.InDelta(t, 0.03, metric.FailureRate(), 1e-9)
}

func TestGetReliabilityMediumAndLowTiers(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	medium := reliability.Route{Provider: "med", SourceChain: "ethereum", DestinationChain: "arbitrum"}
	low := reliability.Route{Provider: "low", SourceChain: "ethereum", DestinationChain: "arbitrum"}

	seedEvents(t, adj, medium, map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 88,
		reliability.OutcomeFailed:  12,
	})
	seedEvents(t, adj, low, map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 70,
		reliability.OutcomeFailed:  30,
	})

	m, err := adj.GetReliability(context.Background(), medium, reliability.Window{})
	require.NoError(t, err)
	assert.Equal(t, reliability.TierMedium, m.Tier)

	l, err := adj.GetReliability(context.Background(), low, reliability.Window{})
	require.NoError(t, err)
	assert.Equal(t, reliability.TierLow, l.Tier)
}

func TestCancelledEventsExcludedFromMath(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess:   97,
		reliability.OutcomeCancelled: 3,
	})

	metric, err := adj.GetReliability(context.Background(), testRoute(), reliability.Window{})
	require.NoError(t, err)

	assert.Equal(t, 97, metric.TotalAttempts)
	assert.InDelta(t, 100, metric.ReliabilityPercent, 1e-9)
	assert.Equal(t, reliability.TierHigh, metric.Tier)
}

func TestBelowMinimumAttemptsScoresZero(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 9,
	})

	metric, err := adj.GetReliability(context.Background(), testRoute(), reliability.Window{})
	require.NoError(t, err)

	assert.Equal(t, 9, metric.TotalAttempts)
	assert.Equal(t, 0.0, metric.ReliabilityPercent)
	assert.Equal(t, 0.0, metric.ReliabilityScore)
	assert.Equal(t, reliability.TierLow, metric.Tier)
}

func TestTimeoutPenaltyIsCapped(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 20,
		reliability.OutcomeTimeout: 80,
	})

	metric, err := adj.GetReliability(context.Background(), testRoute(), reliability.Window{})
	require.NoError(t, err)

	// Raw penalty 0.8*10 = 8 exceeds the cap of 5.
	assert.InDelta(t, 20, metric.ReliabilityPercent, 1e-9)
	assert.InDelta(t, 15, metric.ReliabilityScore, 1e-9)
}

func TestCountWindowKeepsMostRecent(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	ctx := context.Background()
	route := testRoute()

	// 50 old failures followed by 20 strictly newer successes.
	old := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < 50; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeFailed, OccurredAt: old.Add(time.Duration(i) * time.Minute),
		}))
	}
	recent := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 20; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeSuccess, OccurredAt: recent.Add(time.Duration(i) * time.Second),
		}))
	}

	metric, err := adj.GetReliability(ctx, route, reliability.Window{
		Mode: reliability.WindowTransactionCount,
		Size: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, metric.TotalAttempts)
	assert.InDelta(t, 100, metric.ReliabilityPercent, 1e-9)
}

func TestCountWindowFillsThroughCancelledBurst(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	ctx := context.Background()
	route := testRoute()

	// 10 old successes buried under 90 newer cancellations. The most recent
	// fetches are all cancelled, but the window must still reach back to
	// the non-cancelled history.
	old := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeSuccess, OccurredAt: old.Add(time.Duration(i) * time.Minute),
		}))
	}
	recent := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 90; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeCancelled, OccurredAt: recent.Add(time.Duration(i) * time.Second),
		}))
	}

	metric, err := adj.GetReliability(ctx, route, reliability.Window{
		Mode: reliability.WindowTransactionCount,
		Size: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, metric.TotalAttempts)
	assert.InDelta(t, 100, metric.ReliabilityPercent, 1e-9)
	assert.Equal(t, reliability.TierHigh, metric.Tier)
}

func TestTimeWindowExcludesOldEvents(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	ctx := context.Background()
	route := testRoute()

	// 30 failures well outside a 7-day window.
	old := time.Now().UTC().AddDate(0, 0, -60)
	for i := 0; i < 30; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeFailed, OccurredAt: old.Add(time.Duration(i) * time.Minute),
		}))
	}
	// 15 successes inside it.
	recent := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeSuccess, OccurredAt: recent.Add(time.Duration(i) * time.Second),
		}))
	}

	metric, err := adj.GetReliability(ctx, route, reliability.Window{
		Mode: reliability.WindowTimeBased,
		Size: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, 15, metric.TotalAttempts)
	assert.InDelta(t, 100, metric.ReliabilityPercent, 1e-9)
}

func TestRecordEventInvalidatesCachedMetric(t *testing.T) {
	adj, mem := newTestAdjuster(t)
	ctx := context.Background()
	route := testRoute()

	seedEvents(t, adj, route, map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 20,
	})

	first, err := adj.GetReliability(ctx, route, reliability.Window{})
	require.NoError(t, err)
	assert.InDelta(t, 100, first.ReliabilityPercent, 1e-9)

	require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
		Route: route, Outcome: reliability.OutcomeFailed,
	}))

	cached, found, err := mem.GetMetric(ctx, route)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, cached.Stale)

	second, err := adj.GetReliability(ctx, route, reliability.Window{})
	require.NoError(t, err)
	assert.Equal(t, 21, second.TotalAttempts)
	assert.Less(t, second.ReliabilityPercent, first.ReliabilityPercent)
	assert.False(t, second.Stale)
}

func TestGetRankingFactorAppliesThresholdPenalty(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 60,
		reliability.OutcomeFailed:  40,
	})

	factor, err := adj.GetRankingFactor(context.Background(), testRoute(), 70, false)
	require.NoError(t, err)

	assert.InDelta(t, 60, factor.ReliabilityScore, 1e-9)
	assert.InDelta(t, 40, factor.AdjustedScore, 1e-9)
	assert.True(t, factor.PenaltyApplied)
	assert.InDelta(t, 0.4, factor.FailureRate, 1e-9)
}

func TestGetRankingFactorIgnoreReliability(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 60,
		reliability.OutcomeFailed:  40,
	})

	factor, err := adj.GetRankingFactor(context.Background(), testRoute(), 70, true)
	require.NoError(t, err)

	assert.InDelta(t, 60, factor.AdjustedScore, 1e-9)
	assert.False(t, factor.PenaltyApplied)
}

func TestGetRankingFactorPenaltyFloorsAtZero(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	seedEvents(t, adj, testRoute(), map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 1,
		reliability.OutcomeFailed:  99,
	})

	factor, err := adj.GetRankingFactor(context.Background(), testRoute(), 70, false)
	require.NoError(t, err)

	// Score 1 minus penalty 20 floors at 0 instead of going negative.
	assert.Equal(t, 0.0, factor.AdjustedScore)
	assert.True(t, factor.PenaltyApplied)
}

func TestGetBulkRankingFactors(t *testing.T) {
	adj, _ := newTestAdjuster(t)
	ctx := context.Background()

	good := reliability.Route{Provider: "good", SourceChain: "ethereum", DestinationChain: "arbitrum"}
	bad := reliability.Route{Provider: "bad", SourceChain: "ethereum", DestinationChain: "arbitrum"}
	elsewhere := reliability.Route{Provider: "good", SourceChain: "polygon", DestinationChain: "base"}

	seedEvents(t, adj, good, map[reliability.Outcome]int{reliability.OutcomeSuccess: 50})
	seedEvents(t, adj, bad, map[reliability.Outcome]int{
		reliability.OutcomeSuccess: 30,
		reliability.OutcomeFailed:  70,
	})
	seedEvents(t, adj, elsewhere, map[reliability.Outcome]int{reliability.OutcomeFailed: 50})

	// Prime the metric cache for each route.
	for _, route := range []reliability.Route{good, bad, elsewhere} {
		_, err := adj.GetReliability(ctx, route, reliability.Window{})
		require.NoError(t, err)
	}

	factors, err := adj.GetBulkRankingFactors(ctx, "ethereum", "arbitrum", 70, false)
	require.NoError(t, err)

	require.Len(t, factors, 2)
	assert.NotContains(t, factors, "elsewhere")
	assert.InDelta(t, 100, factors["good"].AdjustedScore, 1e-9)
	assert.True(t, factors["bad"].PenaltyApplied)
	assert.InDelta(t, 10, factors["bad"].AdjustedScore, 1e-9)
}

func TestGetBulkRankingFactorsRecomputesStale(t *testing.T) {
	adj, mem := newTestAdjuster(t)
	ctx := context.Background()
	route := testRoute()

	seedEvents(t, adj, route, map[reliability.Outcome]int{reliability.OutcomeSuccess: 20})
	_, err := adj.GetReliability(ctx, route, reliability.Window{})
	require.NoError(t, err)

	// New failures mark the cached metric stale.
	for i := 0; i < 20; i++ {
		require.NoError(t, adj.RecordEvent(ctx, reliability.Event{
			Route: route, Outcome: reliability.OutcomeFailed,
		}))
	}

	factors, err := adj.GetBulkRankingFactors(ctx, "ethereum", "arbitrum", 0, false)
	require.NoError(t, err)
	require.Contains(t, factors, "hopway")
	assert.InDelta(t, 50, factors["hopway"].ReliabilityScore, 1e-9)

	cached, found, err := mem.GetMetric(ctx, route)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, cached.Stale)
}

func TestParseWindowModeAliases(t *testing.T) {
	mode, err := reliability.ParseWindowMode("count")
	require.NoError(t, err)
	assert.Equal(t, reliability.WindowTransactionCount, mode)

	mode, err = reliability.ParseWindowMode("TIME")
	require.NoError(t, err)
	assert.Equal(t, reliability.WindowTimeBased, mode)

	_, err = reliability.ParseWindowMode("fortnight")
	assert.Error(t, err)
}
