package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"bridge-router/internal/reliability"
)

// Memory is an in-process event log and metric cache. It backs DSN-less
// runs and unit tests; semantics mirror the Postgres store.
type Memory struct {
	mu      sync.RWMutex
	events  map[string][]reliability.Event
	metrics map[string]reliability.Metric
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:  make(map[string][]reliability.Event),
		metrics: make(map[string]reliability.Metric),
	}
}

// AppendEvent records one outcome event.
func (m *Memory) AppendEvent(_ context.Context, event reliability.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := event.Route.Key()
	m.events[key] = append(m.events[key], event)
	return nil
}

// ListRecentEvents returns up to limit events for the route, newest first.
func (m *Memory) ListRecentEvents(_ context.Context, route reliability.Route, limit int) ([]reliability.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.sortedDesc(route)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListEventsSince returns events at or after since, newest first.
func (m *Memory) ListEventsSince(_ context.Context, route reliability.Route, since time.Time) ([]reliability.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedDesc(route)
	out := make([]reliability.Event, 0, len(all))
	for _, e := range all {
		if e.OccurredAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) sortedDesc(route reliability.Route) []reliability.Event {
	events := m.events[route.Key()]
	out := make([]reliability.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// UpsertMetric replaces the cached metric for the route triple.
func (m *Memory) UpsertMetric(_ context.Context, metric reliability.Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.Route.Key()] = metric
	return nil
}

// GetMetric fetches the cached metric for a route.
func (m *Memory) GetMetric(_ context.Context, route reliability.Route) (reliability.Metric, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metric, ok := m.metrics[route.Key()]
	return metric, ok, nil
}

// InvalidateMetric marks a cached metric stale. Missing rows are a no-op.
func (m *Memory) InvalidateMetric(_ context.Context, route reliability.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if metric, ok := m.metrics[route.Key()]; ok {
		metric.Stale = true
		m.metrics[route.Key()] = metric
	}
	return nil
}

// ListMetricsForPair returns every cached metric on a chain pair.
func (m *Memory) ListMetricsForPair(_ context.Context, sourceChain, destinationChain string) ([]reliability.Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pair := (reliability.Route{SourceChain: sourceChain, DestinationChain: destinationChain}).Key()
	out := make([]reliability.Metric, 0)
	for _, metric := range m.metrics {
		key := (reliability.Route{SourceChain: metric.Route.SourceChain, DestinationChain: metric.Route.DestinationChain}).Key()
		if key == pair {
			out = append(out, metric)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Route.Provider < out[j].Route.Provider
	})
	return out, nil
}

var (
	_ reliability.EventStore  = (*Memory)(nil)
	_ reliability.MetricStore = (*Memory)(nil)
)
