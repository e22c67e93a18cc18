package reliability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"bridge-router/internal/config"
)

// Initial over-fetch factor for count windows: cancelled events are stored
// in the log but must not shrink the effective window. The fetch limit
// doubles until the window fills or the log runs out, so even a burst of
// cancellations beyond this factor cannot under-fill the window.
const countWindowOverfetch = 3

// Adjuster maintains per-route rolling-window reliability metrics. A metric
// moves cached → stale on a fresh event write; any query against a stale or
// absent metric recomputes synchronously before responding.
type Adjuster struct {
	cfg     config.ReliabilityConfig
	events  EventStore
	metrics MetricStore
	group   singleflight.Group
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAdjuster wires an Adjuster over the event log and metric cache.
func NewAdjuster(cfg config.ReliabilityConfig, events EventStore, metrics MetricStore, logger zerolog.Logger) *Adjuster {
	return &Adjuster{
		cfg:     cfg,
		events:  events,
		metrics: metrics,
		logger:  logger.With().Str("component", "reliability").Logger(),
		now:     time.Now,
	}
}

// RecordEvent appends an outcome to the log and invalidates the route's
// cached metric. Every outcome type is accepted; cancelled events are stored
// but excluded from all downstream math.
func (a *Adjuster) RecordEvent(ctx context.Context, event Event) error {
	if event.Route.Provider == "" || event.Route.SourceChain == "" || event.Route.DestinationChain == "" {
		return fmt.Errorf("record event: route triple is required")
	}
	if _, err := ParseOutcome(string(event.Outcome)); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}

	if err := a.events.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append outcome event: %w", err)
	}

	// Invalidation is best effort; the next query recomputes regardless of
	// whether the stale mark landed.
	if err := a.metrics.InvalidateMetric(ctx, event.Route); err != nil {
		a.logger.Warn().Err(err).Str("route", event.Route.Key()).Msg("failed to invalidate cached metric")
	}
	return nil
}

// GetReliability returns the route's metric for the window, recomputing
// lazily when the cache is absent, stale, or was computed for a different
// window. Concurrent recomputes of the same route collapse to one.
func (a *Adjuster) GetReliability(ctx context.Context, route Route, window Window) (Metric, error) {
	window = a.normalizeWindow(window)

	cached, found, err := a.metrics.GetMetric(ctx, route)
	if err != nil {
		return Metric{}, fmt.Errorf("get cached metric: %w", err)
	}
	if found && !cached.Stale && cached.Window == window {
		return cached, nil
	}

	key := fmt.Sprintf("%s|%s|%d", route.Key(), window.Mode, window.Size)
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.recompute(ctx, route, window)
	})
	if err != nil {
		return Metric{}, err
	}
	return v.(Metric), nil
}

// GetRankingFactor returns the route's historical score plus an adjusted
// score: equal to the raw score unless ignoreReliability is set (no penalty
// ever applies) or the raw score is below threshold, in which case a fixed
// penalty is subtracted, floored at 0.
func (a *Adjuster) GetRankingFactor(ctx context.Context, route Route, threshold float64, ignoreReliability bool) (RankingFactor, error) {
	metric, err := a.GetReliability(ctx, route, Window{})
	if err != nil {
		return RankingFactor{}, err
	}
	return a.factorFromMetric(metric, threshold, ignoreReliability), nil
}

// GetBulkRankingFactors computes ranking factors for every provider with a
// cached metric on the chain pair, keyed by provider id.
func (a *Adjuster) GetBulkRankingFactors(ctx context.Context, sourceChain, destinationChain string, threshold float64, ignoreReliability bool) (map[string]RankingFactor, error) {
	cached, err := a.metrics.ListMetricsForPair(ctx, sourceChain, destinationChain)
	if err != nil {
		return nil, fmt.Errorf("list metrics for pair: %w", err)
	}

	factors := make(map[string]RankingFactor, len(cached))
	for _, m := range cached {
		metric := m
		if metric.Stale {
			metric, err = a.GetReliability(ctx, m.Route, m.Window)
			if err != nil {
				a.logger.Warn().Err(err).Str("route", m.Route.Key()).Msg("stale metric recompute failed; using cached values")
				metric = m
			}
		}
		factors[metric.Route.Provider] = a.factorFromMetric(metric, threshold, ignoreReliability)
	}
	return factors, nil
}

func (a *Adjuster) factorFromMetric(metric Metric, threshold float64, ignoreReliability bool) RankingFactor {
	factor := RankingFactor{
		Route:            metric.Route,
		ReliabilityScore: metric.ReliabilityScore,
		AdjustedScore:    metric.ReliabilityScore,
		FailureRate:      metric.FailureRate(),
		Tier:             metric.Tier,
	}
	if !ignoreReliability && metric.ReliabilityScore < threshold {
		factor.AdjustedScore = math.Max(metric.ReliabilityScore-a.cfg.RankingPenalty, 0)
		factor.PenaltyApplied = true
	}
	return factor
}

func (a *Adjuster) recompute(ctx context.Context, route Route, window Window) (Metric, error) {
	events, err := a.windowEvents(ctx, route, window)
	if err != nil {
		return Metric{}, err
	}

	metric := computeMetric(route, events, window, a.cfg, a.now().UTC())

	if err := a.metrics.UpsertMetric(ctx, metric); err != nil {
		return Metric{}, fmt.Errorf("upsert metric: %w", err)
	}

	a.logger.Debug().
		Str("route", route.Key()).
		Int("attempts", metric.TotalAttempts).
		Float64("percent", metric.ReliabilityPercent).
		Str("tier", string(metric.Tier)).
		Msg("reliability metric recomputed")
	return metric, nil
}

// windowEvents returns the route's non-cancelled events inside the window,
// newest first.
func (a *Adjuster) windowEvents(ctx context.Context, route Route, window Window) ([]Event, error) {
	switch window.Mode {
	case WindowTimeBased:
		since := a.now().UTC().AddDate(0, 0, -window.Size)
		events, err := a.events.ListEventsSince(ctx, route, since)
		if err != nil {
			return nil, fmt.Errorf("list events since %s: %w", since.Format(time.RFC3339), err)
		}
		return dropCancelled(events), nil
	default:
		limit := window.Size * countWindowOverfetch
		for {
			events, err := a.events.ListRecentEvents(ctx, route, limit)
			if err != nil {
				return nil, fmt.Errorf("list recent events: %w", err)
			}
			kept := dropCancelled(events)
			// len(events) < limit means the log is exhausted.
			if len(kept) >= window.Size || len(events) < limit {
				if len(kept) > window.Size {
					kept = kept[:window.Size]
				}
				return kept, nil
			}
			limit *= 2
		}
	}
}

func (a *Adjuster) normalizeWindow(window Window) Window {
	if window.Mode == "" {
		if mode, err := ParseWindowMode(a.cfg.DefaultWindowMode); err == nil {
			window.Mode = mode
		} else {
			window.Mode = WindowTransactionCount
		}
	}
	if window.Size <= 0 {
		window.Size = a.cfg.DefaultWindowSize
	}
	if window.Size <= 0 {
		window.Size = 100
	}
	return window
}

func dropCancelled(events []Event) []Event {
	kept := events[:0:len(events)]
	for _, e := range events {
		if e.Outcome == OutcomeCancelled {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// computeMetric derives a fresh immutable snapshot from windowed events.
// Below the minimum-attempts threshold both percent and score are forced to
// 0 rather than extrapolated from a statistically meaningless sample.
func computeMetric(route Route, events []Event, window Window, cfg config.ReliabilityConfig, now time.Time) Metric {
	metric := Metric{
		Route:      route,
		Window:     window,
		ComputedAt: now,
	}

	for _, e := range events {
		switch e.Outcome {
		case OutcomeSuccess:
			metric.SuccessfulCount++
		case OutcomeFailed:
			metric.FailedCount++
		case OutcomeTimeout:
			metric.TimeoutCount++
		}
	}
	metric.TotalAttempts = metric.SuccessfulCount + metric.FailedCount + metric.TimeoutCount

	if metric.TotalAttempts < cfg.MinAttempts || metric.TotalAttempts == 0 {
		metric.Tier = TierLow
		return metric
	}

	total := float64(metric.TotalAttempts)
	metric.ReliabilityPercent = float64(metric.SuccessfulCount) / total * 100

	timeoutRatio := float64(metric.TimeoutCount) / total
	penalty := math.Min(timeoutRatio*cfg.TimeoutPenaltyRate, cfg.TimeoutPenaltyCap)
	metric.ReliabilityScore = clamp(metric.ReliabilityPercent-penalty, 0, 100)

	switch {
	case metric.ReliabilityPercent >= cfg.HighTierCutoff:
		metric.Tier = TierHigh
	case metric.ReliabilityPercent >= cfg.MediumTierCutoff:
		metric.Tier = TierMedium
	default:
		metric.Tier = TierLow
	}
	return metric
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
