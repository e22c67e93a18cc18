package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bridge-router/internal/config"
	"bridge-router/internal/engine"
	"bridge-router/internal/liquidity"
	"bridge-router/internal/provider"
	"bridge-router/internal/reliability"
	"bridge-router/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStores returns the event log and metric cache. Without a configured
// DSN it falls back to the in-memory store so quote commands still work;
// history then lasts only for the process lifetime.
func (a *App) openStores(ctx context.Context) (reliability.EventStore, reliability.MetricStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; reliability history is in-memory only")
		mem := storage.NewMemory()
		return mem, mem, func() {}, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return store, store, store.Close, nil
}

// requireStore opens the Postgres store or fails; for commands that make no
// sense without durable history.
func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, fmt.Errorf("database.dsn not configured")
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newRegistry() (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, pc := range a.Config.Providers {
		desc := provider.Descriptor{
			ID:     pc.ID,
			Name:   pc.Name,
			Chains: pc.Chains,
			Tokens: pc.Tokens,
			Active: pc.Active,
		}
		if desc.Name == "" {
			desc.Name = desc.ID
		}
		adapter := provider.NewREST(provider.RESTOptions{
			Descriptor: desc,
			BaseURL:    pc.BaseURL,
			QuotePath:  pc.QuotePath,
			APIKey:     pc.APIKey,
			UserAgent:  pc.UserAgent,
			Timeout:    pc.RequestTimeout,
		}, a.Logger)
		if err := registry.Register(desc, adapter); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *App) newLiquiditySource() liquidity.Source {
	sources := liquidity.Chain{liquidity.NewStatic(a.Config.Liquidity.Pools)}
	if a.Config.Liquidity.RPCURL != "" {
		sources = append(sources, liquidity.NewOnchain(liquidity.OnchainOptions{
			RPCURL:  a.Config.Liquidity.RPCURL,
			Timeout: a.Config.Liquidity.RequestTimeout,
			Pools:   a.Config.Liquidity.Pools,
		}, a.Logger))
	}
	return sources
}

func (a *App) newAdjuster(events reliability.EventStore, metrics reliability.MetricStore) *reliability.Adjuster {
	return reliability.NewAdjuster(a.Config.Reliability, events, metrics, a.Logger)
}

func (a *App) newEngine(adjuster *reliability.Adjuster) (*engine.Engine, error) {
	registry, err := a.newRegistry()
	if err != nil {
		return nil, err
	}

	profiles, err := engine.ProfilesFromConfig(a.Config.Ranking)
	if err != nil {
		return nil, err
	}

	collector := engine.NewCollector(a.Config.Collector.ProviderTimeout, a.Logger)
	slippage := engine.NewSlippageEstimator(a.Config.Slippage, a.newLiquiditySource(), a.Logger)

	var history engine.HistoryAdjuster
	if adjuster != nil {
		history = historyAdapter{adjuster: adjuster}
	}

	return engine.New(registry, collector, slippage, profiles, history, a.Config.Ranking.History, a.Logger), nil
}

// historyAdapter bridges the reliability adjuster into the engine's
// ranking-factor contract.
type historyAdapter struct {
	adjuster *reliability.Adjuster
}

func (h historyAdapter) GetBulkRankingFactors(ctx context.Context, sourceChain, destinationChain string, threshold float64, ignoreReliability bool) (map[string]engine.RouteFactor, error) {
	factors, err := h.adjuster.GetBulkRankingFactors(ctx, sourceChain, destinationChain, threshold, ignoreReliability)
	if err != nil {
		return nil, err
	}

	out := make(map[string]engine.RouteFactor, len(factors))
	for id, f := range factors {
		out[id] = engine.RouteFactor{
			ReliabilityScore: f.ReliabilityScore,
			AdjustedScore:    f.AdjustedScore,
			FailureRate:      f.FailureRate,
		}
	}
	return out, nil
}

// QuoteOptions configure one aggregation request.
type QuoteOptions struct {
	SourceChain      string
	DestinationChain string
	SourceToken      string
	DestinationToken string
	Amount           float64
	Mode             string
}

// RecordOptions configure one outcome event append.
type RecordOptions struct {
	Provider         string
	SourceChain      string
	DestinationChain string
	Outcome          string
	Duration         time.Duration
	OccurredAt       *time.Time
}

// ReliabilityOptions configure a reliability report query.
type ReliabilityOptions struct {
	Provider         string
	SourceChain      string
	DestinationChain string
	WindowMode       string
	WindowSize       int
}

// ExportOptions hold parameters for exporting reliability history.
type ExportOptions struct {
	Provider         string
	SourceChain      string
	DestinationChain string
	From             *time.Time
	To               *time.Time
	PNGPath          string
	CSVPath          string
	MaxPoints        int
}
