package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bridge-router/internal/reliability"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertEventSQL = `INSERT INTO route_events (
        provider,
        source_chain,
        destination_chain,
        outcome,
        occurred_at,
        duration_ms
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listRecentEventsSQL = `SELECT
        provider,
        source_chain,
        destination_chain,
        outcome,
        occurred_at,
        duration_ms
    FROM route_events
    WHERE provider = $1
      AND source_chain = $2
      AND destination_chain = $3
    ORDER BY occurred_at DESC, id DESC
    LIMIT $4;`

	listEventsSinceSQL = `SELECT
        provider,
        source_chain,
        destination_chain,
        outcome,
        occurred_at,
        duration_ms
    FROM route_events
    WHERE provider = $1
      AND source_chain = $2
      AND destination_chain = $3
      AND occurred_at >= $4
    ORDER BY occurred_at DESC, id DESC;`

	upsertMetricSQL = `INSERT INTO reliability_metrics (
        provider,
        source_chain,
        destination_chain,
        total_attempts,
        successful_count,
        failed_count,
        timeout_count,
        reliability_percent,
        reliability_score,
        tier,
        window_mode,
        window_size,
        stale,
        computed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    ON CONFLICT (provider, source_chain, destination_chain) DO UPDATE
    SET
        total_attempts      = EXCLUDED.total_attempts,
        successful_count    = EXCLUDED.successful_count,
        failed_count        = EXCLUDED.failed_count,
        timeout_count       = EXCLUDED.timeout_count,
        reliability_percent = EXCLUDED.reliability_percent,
        reliability_score   = EXCLUDED.reliability_score,
        tier                = EXCLUDED.tier,
        window_mode         = EXCLUDED.window_mode,
        window_size         = EXCLUDED.window_size,
        stale               = EXCLUDED.stale,
        computed_at         = EXCLUDED.computed_at;`

	getMetricSQL = `SELECT
        provider,
        source_chain,
        destination_chain,
        total_attempts,
        successful_count,
        failed_count,
        timeout_count,
        reliability_percent,
        reliability_score,
        tier,
        window_mode,
        window_size,
        stale,
        computed_at
    FROM reliability_metrics
    WHERE provider = $1
      AND source_chain = $2
      AND destination_chain = $3;`

	invalidateMetricSQL = `UPDATE reliability_metrics
    SET stale = TRUE
    WHERE provider = $1
      AND source_chain = $2
      AND destination_chain = $3;`

	listMetricsForPairSQL = `SELECT
        provider,
        source_chain,
        destination_chain,
        total_attempts,
        successful_count,
        failed_count,
        timeout_count,
        reliability_percent,
        reliability_score,
        tier,
        window_mode,
        window_size,
        stale,
        computed_at
    FROM reliability_metrics
    WHERE source_chain = $1
      AND destination_chain = $2
    ORDER BY provider;`
)

// Store provides Postgres-backed event log and metric cache access.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AppendEvent writes one outcome event to the append-only log.
func (s *Store) AppendEvent(ctx context.Context, event reliability.Event) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertEventSQL,
		event.Route.Provider,
		event.Route.SourceChain,
		event.Route.DestinationChain,
		string(event.Outcome),
		event.OccurredAt,
		event.Duration.Milliseconds(),
	)
	if execErr != nil {
		return fmt.Errorf("append route event: %w", execErr)
	}
	return nil
}

// ListRecentEvents returns up to limit events for the route, newest first.
func (s *Store) ListRecentEvents(ctx context.Context, route reliability.Route, limit int) ([]reliability.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, route.Provider, route.SourceChain, route.DestinationChain, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsSince returns events at or after since, newest first.
func (s *Store) ListEventsSince(ctx context.Context, route reliability.Route, since time.Time) ([]reliability.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsSinceSQL, route.Provider, route.SourceChain, route.DestinationChain, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list events since: %w", queryErr)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// UpsertMetric replaces the cached metric for the route triple.
func (s *Store) UpsertMetric(ctx context.Context, metric reliability.Metric) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertMetricSQL,
		metric.Route.Provider,
		metric.Route.SourceChain,
		metric.Route.DestinationChain,
		metric.TotalAttempts,
		metric.SuccessfulCount,
		metric.FailedCount,
		metric.TimeoutCount,
		metric.ReliabilityPercent,
		metric.ReliabilityScore,
		string(metric.Tier),
		string(metric.Window.Mode),
		metric.Window.Size,
		metric.Stale,
		metric.ComputedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert reliability metric: %w", execErr)
	}
	return nil
}

// GetMetric fetches the cached metric for a route.
func (s *Store) GetMetric(ctx context.Context, route reliability.Route) (reliability.Metric, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return reliability.Metric{}, false, err
	}

	row := pool.QueryRow(ctx, getMetricSQL, route.Provider, route.SourceChain, route.DestinationChain)
	metric, scanErr := scanMetric(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return reliability.Metric{}, false, nil
		}
		return reliability.Metric{}, false, scanErr
	}
	return metric, true, nil
}

// InvalidateMetric marks a cached metric stale. Missing rows are a no-op.
func (s *Store) InvalidateMetric(ctx context.Context, route reliability.Route) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, invalidateMetricSQL, route.Provider, route.SourceChain, route.DestinationChain); execErr != nil {
		return fmt.Errorf("invalidate reliability metric: %w", execErr)
	}
	return nil
}

// ListMetricsForPair returns every cached metric on a chain pair.
func (s *Store) ListMetricsForPair(ctx context.Context, sourceChain, destinationChain string) ([]reliability.Metric, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetricsForPairSQL, sourceChain, destinationChain)
	if queryErr != nil {
		return nil, fmt.Errorf("list metrics for pair: %w", queryErr)
	}
	defer rows.Close()

	metrics := make([]reliability.Metric, 0)
	for rows.Next() {
		metric, scanErr := scanMetric(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		metrics = append(metrics, metric)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return metrics, nil
}

func scanEvents(rows pgx.Rows) ([]reliability.Event, error) {
	events := make([]reliability.Event, 0)
	for rows.Next() {
		var (
			event      reliability.Event
			outcome    string
			durationMS int64
		)
		if err := rows.Scan(
			&event.Route.Provider,
			&event.Route.SourceChain,
			&event.Route.DestinationChain,
			&outcome,
			&event.OccurredAt,
			&durationMS,
		); err != nil {
			return nil, err
		}
		event.Outcome = reliability.Outcome(outcome)
		event.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanMetric(row pgx.Row) (reliability.Metric, error) {
	var (
		metric     reliability.Metric
		tier       string
		windowMode string
	)
	if err := row.Scan(
		&metric.Route.Provider,
		&metric.Route.SourceChain,
		&metric.Route.DestinationChain,
		&metric.TotalAttempts,
		&metric.SuccessfulCount,
		&metric.FailedCount,
		&metric.TimeoutCount,
		&metric.ReliabilityPercent,
		&metric.ReliabilityScore,
		&tier,
		&windowMode,
		&metric.Window.Size,
		&metric.Stale,
		&metric.ComputedAt,
	); err != nil {
		return reliability.Metric{}, err
	}
	metric.Tier = reliability.Tier(tier)
	metric.Window.Mode = reliability.WindowMode(windowMode)
	return metric, nil
}

var (
	_ reliability.EventStore  = (*Store)(nil)
	_ reliability.MetricStore = (*Store)(nil)
)
