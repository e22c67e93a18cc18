package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is one aggregation request handed to the engine.
type Request struct {
	SourceChain      string
	DestinationChain string
	SourceToken      string
	DestinationToken string
	Amount           decimal.Decimal
	Mode             string
}

// RawQuote is one provider's settled outcome for a request. Exactly one is
// produced per eligible provider and never mutated afterwards.
type RawQuote struct {
	ProviderID           string
	ProviderName         string
	OutputAmount         decimal.Decimal
	FeeUSD               decimal.Decimal
	EstimatedTimeSeconds int64
	Supported            bool
	Error                string
	ResponseTime         time.Duration
}

// Confidence grades a slippage estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SlippageEstimate bounds expected price impact for a quote.
type SlippageEstimate struct {
	ExpectedPct float64
	MaxPct      float64
	Confidence  Confidence
}

// NormalizedScores holds the four competing factors rescaled to [0,100]
// across the current result set.
type NormalizedScores struct {
	Cost        float64
	Speed       float64
	Reliability float64
	Liquidity   float64
}

// RankedQuote is a successful quote with its scores and dense 1-based rank.
type RankedQuote struct {
	RawQuote
	Scores         NormalizedScores
	Slippage       SlippageEstimate
	PoolTVLUSD     decimal.Decimal
	CompositeScore float64
	Rank           int
}

// Result is the engine's answer: ranked successes first, failed quotes kept
// for diagnostics.
type Result struct {
	RequestID           string
	Mode                string
	RankedQuotes        []RankedQuote
	FailedQuotes        []RawQuote
	BestRoute           *RankedQuote
	SuccessfulProviders int
	TotalProviders      int
	FetchDurationMs     int64
}
