package reliability

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Outcome classifies how a transfer on a route ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

// ParseOutcome validates an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeSuccess:
		return OutcomeSuccess, nil
	case OutcomeFailed:
		return OutcomeFailed, nil
	case OutcomeTimeout:
		return OutcomeTimeout, nil
	case OutcomeCancelled:
		return OutcomeCancelled, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Route identifies a (provider, source chain, destination chain) triple.
type Route struct {
	Provider         string
	SourceChain      string
	DestinationChain string
}

// Key is the unique cache key for the triple.
func (r Route) Key() string {
	return strings.ToLower(r.Provider) + "|" + strings.ToLower(r.SourceChain) + "|" + strings.ToLower(r.DestinationChain)
}

// Event is one appended transaction outcome. Cancelled events are stored but
// excluded from all reliability arithmetic.
type Event struct {
	Route      Route
	Outcome    Outcome
	OccurredAt time.Time
	Duration   time.Duration
}

// WindowMode selects how the rolling window is bounded.
type WindowMode string

const (
	// WindowTransactionCount takes the most recent N non-cancelled events.
	WindowTransactionCount WindowMode = "transaction_count"
	// WindowTimeBased takes all non-cancelled events from the last N days.
	WindowTimeBased WindowMode = "time_based"
)

// ParseWindowMode validates a window mode string.
func ParseWindowMode(s string) (WindowMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transaction_count", "count":
		return WindowTransactionCount, nil
	case "time_based", "time":
		return WindowTimeBased, nil
	}
	return "", fmt.Errorf("unknown window mode %q", s)
}

// Window is a bounded recent slice of route history: last N transactions or
// last N days depending on Mode.
type Window struct {
	Mode WindowMode
	Size int
}

// Tier coarsely classifies a route's reliability.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Metric is one computed reliability snapshot for a route. Exactly one
// metric exists per route triple; recomputation replaces it wholesale.
type Metric struct {
	Route              Route
	TotalAttempts      int
	SuccessfulCount    int
	FailedCount        int
	TimeoutCount       int
	ReliabilityPercent float64
	ReliabilityScore   float64
	Tier               Tier
	Window             Window
	ComputedAt         time.Time
	Stale              bool
}

// FailureRate is the non-success share of windowed attempts.
func (m Metric) FailureRate() float64 {
	if m.TotalAttempts == 0 {
		return 0
	}
	return float64(m.FailedCount+m.TimeoutCount) / float64(m.TotalAttempts)
}

// RankingFactor is a route's historical score as consumed by ranking.
type RankingFactor struct {
	Route            Route
	ReliabilityScore float64
	AdjustedScore    float64
	FailureRate      float64
	Tier             Tier
	PenaltyApplied   bool
}

// EventStore is the append-only transaction outcome log.
type EventStore interface {
	AppendEvent(ctx context.Context, event Event) error
	// ListRecentEvents returns up to limit events for the route, newest first.
	ListRecentEvents(ctx context.Context, route Route, limit int) ([]Event, error)
	// ListEventsSince returns events at or after since, newest first.
	ListEventsSince(ctx context.Context, route Route, since time.Time) ([]Event, error)
}

// MetricStore caches computed metrics keyed by the route triple.
type MetricStore interface {
	UpsertMetric(ctx context.Context, metric Metric) error
	GetMetric(ctx context.Context, route Route) (Metric, bool, error)
	// InvalidateMetric marks a cached metric stale; missing rows are a no-op.
	InvalidateMetric(ctx context.Context, route Route) error
	// ListMetricsForPair returns every provider's cached metric on the pair.
	ListMetricsForPair(ctx context.Context, sourceChain, destinationChain string) ([]Metric, error)
}
