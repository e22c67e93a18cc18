package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bridge-router/internal/provider"
)

const defaultProviderTimeout = 10 * time.Second

// Collector fans a request out to every eligible provider concurrently.
// Each call is bounded by its own timeout; the collector always waits for
// the full batch to settle and never short-circuits on a failure.
type Collector struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCollector constructs a Collector with a per-provider timeout bound.
func NewCollector(timeout time.Duration, logger zerolog.Logger) *Collector {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Collector{
		timeout: timeout,
		logger:  logger.With().Str("component", "collector").Logger(),
	}
}

// Collect returns exactly one RawQuote per eligible provider, success or
// failure, in the order the providers were passed in.
func (c *Collector) Collect(ctx context.Context, req provider.Request, eligible []provider.Registered) []RawQuote {
	results := make([]RawQuote, len(eligible))

	var wg sync.WaitGroup
	for i, entry := range eligible {
		wg.Add(1)
		go func(idx int, p provider.Registered) {
			defer wg.Done()
			results[idx] = c.collectOne(ctx, req, p)
		}(i, entry)
	}
	wg.Wait()

	return results
}

func (c *Collector) collectOne(ctx context.Context, req provider.Request, p provider.Registered) RawQuote {
	rq := RawQuote{
		ProviderID:   p.Descriptor.ID,
		ProviderName: p.Descriptor.Name,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type settled struct {
		quote provider.Quote
		err   error
	}
	// Buffered so a late adapter return never leaks the goroutine once the
	// deadline has already settled this slot.
	done := make(chan settled, 1)

	start := time.Now()
	go func() {
		defer func() {
			// An adapter panic is a provider failure, not a batch abort.
			if r := recover(); r != nil {
				c.logger.Error().Str("provider", p.Descriptor.ID).Interface("panic", r).Msg("adapter panicked")
				done <- settled{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		quote, err := p.Adapter.GetQuote(callCtx, req)
		done <- settled{quote: quote, err: err}
	}()

	// Selecting on the deadline keeps the timeout bound even for adapters
	// that ignore ctx.
	var res settled
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = settled{err: callCtx.Err()}
	}
	rq.ResponseTime = time.Since(start)

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			rq.Error = fmt.Sprintf("timeout after %s", c.timeout)
			c.logger.Warn().Str("provider", p.Descriptor.ID).Dur("timeout", c.timeout).Msg("provider quote timed out")
		} else {
			rq.Error = res.err.Error()
			c.logger.Warn().Str("provider", p.Descriptor.ID).Err(res.err).Msg("provider quote failed")
		}
		return rq
	}

	quote := res.quote
	rq.Supported = true
	rq.OutputAmount = quote.OutputAmount
	rq.FeeUSD = quote.FeeUSD
	rq.EstimatedTimeSeconds = quote.EstimatedTimeSeconds

	c.logger.Debug().
		Str("provider", p.Descriptor.ID).
		Str("output", quote.OutputAmount.String()).
		Str("fee_usd", quote.FeeUSD.String()).
		Int64("eta_s", quote.EstimatedTimeSeconds).
		Msg("provider quote collected")
	return rq
}
