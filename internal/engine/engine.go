package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bridge-router/internal/config"
	"bridge-router/internal/provider"
)

// RouteFactor is the historical reliability input for one provider on the
// requested chain pair.
type RouteFactor struct {
	ReliabilityScore float64
	AdjustedScore    float64
	FailureRate      float64
}

// HistoryAdjuster supplies historical route reliability for ranking.
type HistoryAdjuster interface {
	GetBulkRankingFactors(ctx context.Context, sourceChain, destinationChain string, threshold float64, ignoreReliability bool) (map[string]RouteFactor, error)
}

// Engine runs the full aggregation pipeline: eligibility filter, concurrent
// quote collection, slippage estimation, batch normalization, and composite
// ranking.
type Engine struct {
	registry   *provider.Registry
	collector  *Collector
	slippage   *SlippageEstimator
	profiles   *Profiles
	history    HistoryAdjuster
	historyCfg config.HistoryAdjustmentConfig
	logger     zerolog.Logger
}

// New wires an Engine. history may be nil to rank on same-request data only.
func New(registry *provider.Registry, collector *Collector, slippage *SlippageEstimator, profiles *Profiles, history HistoryAdjuster, historyCfg config.HistoryAdjustmentConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		collector:  collector,
		slippage:   slippage,
		profiles:   profiles,
		history:    history,
		historyCfg: historyCfg,
		logger:     logger.With().Str("component", "engine").Logger(),
	}
}

// GetRoutes aggregates quotes for the request and returns them ranked.
// Returns ErrRouteNotSupported before any network call when no provider is
// eligible, and ErrAllProvidersFailed (with the failed quotes still attached
// to the result) when every eligible provider failed.
func (e *Engine) GetRoutes(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	logger := e.logger.With().Str("request_id", requestID).Logger()

	provReq := provider.Request{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		SourceToken:      req.SourceToken,
		DestinationToken: req.DestinationToken,
		Amount:           req.Amount,
	}

	eligible := e.registry.Eligible(provReq)
	if len(eligible) == 0 {
		logger.Info().
			Str("source", req.SourceChain).
			Str("dest", req.DestinationChain).
			Str("token", req.SourceToken).
			Msg("no eligible providers for route")
		return nil, ErrRouteNotSupported
	}

	weights, exact := e.profiles.Resolve(req.Mode)
	mode := req.Mode
	if !exact {
		if req.Mode != "" {
			logger.Warn().Str("mode", req.Mode).Str("fallback", e.profiles.DefaultMode()).Msg("unknown optimization mode")
		}
		mode = e.profiles.DefaultMode()
	}

	start := time.Now()
	raw := e.collector.Collect(ctx, provReq, eligible)
	fetchDuration := time.Since(start)

	result := &Result{
		RequestID:       requestID,
		Mode:            mode,
		TotalProviders:  len(raw),
		FetchDurationMs: fetchDuration.Milliseconds(),
	}

	successes := make([]RankedQuote, 0, len(raw))
	for _, q := range raw {
		if q.Supported {
			successes = append(successes, RankedQuote{RawQuote: q})
		} else {
			result.FailedQuotes = append(result.FailedQuotes, q)
		}
	}
	result.SuccessfulProviders = len(successes)

	if len(successes) == 0 {
		logger.Warn().Int("providers", len(raw)).Msg("every eligible provider failed")
		return result, ErrAllProvidersFailed
	}

	// Slippage depends on the source asset and trade size, which are shared
	// by every quote in the batch; estimate once.
	estimate, tvl := e.slippage.Estimate(ctx, req.SourceToken, req.SourceChain, req.Amount)
	for i := range successes {
		successes[i].Slippage = estimate
		successes[i].PoolTVLUSD = tvl
	}

	e.score(ctx, req, successes)
	result.RankedQuotes = rankQuotes(successes, weights)
	result.BestRoute = &result.RankedQuotes[0]

	logger.Info().
		Str("mode", mode).
		Int("ranked", len(result.RankedQuotes)).
		Int("failed", len(result.FailedQuotes)).
		Int64("fetch_ms", result.FetchDurationMs).
		Str("best", result.BestRoute.ProviderID).
		Msg("routes ranked")
	return result, nil
}

// score fills the four normalized factor scores across the batch.
func (e *Engine) score(ctx context.Context, req Request, quotes []RankedQuote) {
	factors := e.historyFactors(ctx, req)

	costs := make([]float64, len(quotes))
	speeds := make([]float64, len(quotes))
	reliabilities := make([]float64, len(quotes))
	liquidities := make([]float64, len(quotes))

	for i, q := range quotes {
		costs[i] = q.FeeUSD.InexactFloat64()
		speeds[i] = float64(q.EstimatedTimeSeconds)
		liquidities[i] = q.PoolTVLUSD.InexactFloat64()

		f := factors[q.ProviderID]
		reliabilities[i] = CombineReliability(f.AdjustedScore, f.FailureRate)
	}

	costScores := Normalize(costs, Descending)
	speedScores := Normalize(speeds, Descending)
	reliabilityScores := Normalize(reliabilities, Ascending)
	liquidityScores := Normalize(liquidities, Ascending)

	for i := range quotes {
		quotes[i].Scores = NormalizedScores{
			Cost:        costScores[i],
			Speed:       speedScores[i],
			Reliability: reliabilityScores[i],
			Liquidity:   liquidityScores[i],
		}
	}
}

func (e *Engine) historyFactors(ctx context.Context, req Request) map[string]RouteFactor {
	if e.history == nil || !e.historyCfg.Enabled {
		return nil
	}

	factors, err := e.history.GetBulkRankingFactors(ctx, req.SourceChain, req.DestinationChain, e.historyCfg.Threshold, e.historyCfg.IgnoreReliability)
	if err != nil {
		// Historical data is an enhancement; ranking proceeds without it.
		e.logger.Warn().Err(err).Msg("bulk ranking factors unavailable")
		return nil
	}
	return factors
}
