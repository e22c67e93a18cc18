package engine

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bridge-router/internal/config"
	"bridge-router/internal/liquidity"
)

// SlippageEstimator approximates price impact for one quote using a
// constant-product model against known pool liquidity. Pure function of its
// inputs; safe to call concurrently.
type SlippageEstimator struct {
	cfg    config.SlippageConfig
	source liquidity.Source
	logger zerolog.Logger
}

// NewSlippageEstimator constructs the estimator.
func NewSlippageEstimator(cfg config.SlippageConfig, source liquidity.Source, logger zerolog.Logger) *SlippageEstimator {
	if cfg.MaxMultiplier <= 0 {
		cfg.MaxMultiplier = 2.5
	}
	if cfg.HighConfidencePct <= 0 {
		cfg.HighConfidencePct = 0.1
	}
	if cfg.MediumConfidencePct <= 0 {
		cfg.MediumConfidencePct = 1.0
	}
	if cfg.FallbackRatePct <= 0 {
		cfg.FallbackRatePct = 0.0001
	}
	if cfg.FallbackCapPct <= 0 {
		cfg.FallbackCapPct = 5.0
	}
	return &SlippageEstimator{
		cfg:    cfg,
		source: source,
		logger: logger.With().Str("component", "slippage").Logger(),
	}
}

// Estimate returns expected/max price impact and a confidence grade for a
// trade of amountUSD in the given source token and chain. Liquidity gaps
// degrade to a conservative size-proportional estimate; never an error.
// The second return value is the pool TVL used, zero when unknown.
func (e *SlippageEstimator) Estimate(ctx context.Context, token, chain string, amountUSD decimal.Decimal) (SlippageEstimate, decimal.Decimal) {
	amount := amountUSD.InexactFloat64()
	if amount < 0 {
		amount = 0
	}

	tvl, ok, err := e.poolTVL(ctx, token, chain)
	if err != nil {
		e.logger.Warn().Err(err).Str("token", token).Str("chain", chain).Msg("liquidity lookup failed; using fallback estimate")
		ok = false
	}
	if !ok || tvl.Sign() <= 0 {
		return e.fallback(amount), decimal.Decimal{}
	}

	tvlF := tvl.InexactFloat64()
	// Constant-product approximation: impact = 1 - 1/sqrt(1 + size/TVL).
	expected := (1 - 1/math.Sqrt(1+amount/tvlF)) * 100
	estimate := SlippageEstimate{
		ExpectedPct: round2(expected),
		MaxPct:      round2(expected * e.cfg.MaxMultiplier),
		Confidence:  e.confidence(amount, tvlF),
	}
	return estimate, tvl
}

func (e *SlippageEstimator) poolTVL(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	if e.source == nil {
		return decimal.Decimal{}, false, nil
	}
	return e.source.PoolTVL(ctx, token, chain)
}

func (e *SlippageEstimator) confidence(amount, tvl float64) Confidence {
	ratioPct := amount / tvl * 100
	switch {
	case ratioPct < e.cfg.HighConfidencePct:
		return ConfidenceHigh
	case ratioPct < e.cfg.MediumConfidencePct:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (e *SlippageEstimator) fallback(amount float64) SlippageEstimate {
	expected := math.Min(amount*e.cfg.FallbackRatePct, e.cfg.FallbackCapPct)
	return SlippageEstimate{
		ExpectedPct: round2(expected),
		MaxPct:      round2(math.Min(expected*e.cfg.MaxMultiplier, 100)),
		Confidence:  ConfidenceLow,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
