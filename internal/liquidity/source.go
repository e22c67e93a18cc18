package liquidity

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"bridge-router/internal/config"
)

// Source answers pool TVL queries for a (token, chain) pair. The boolean
// reports whether liquidity data exists for the pair; gaps are expected and
// are not errors.
type Source interface {
	PoolTVL(ctx context.Context, token, chain string) (decimal.Decimal, bool, error)
}

func poolKey(token, chain string) string {
	return strings.ToUpper(token) + "|" + strings.ToUpper(chain)
}

// Static serves TVL figures straight from configuration.
type Static struct {
	pools map[string]decimal.Decimal
}

// NewStatic builds a Static source from configured pools. Entries without a
// tvl_usd figure are skipped; they are the on-chain source's job.
func NewStatic(pools []config.LiquidityPoolConfig) *Static {
	m := make(map[string]decimal.Decimal, len(pools))
	for _, p := range pools {
		if p.TVLUSD <= 0 {
			continue
		}
		m[poolKey(p.Token, p.Chain)] = decimal.NewFromFloat(p.TVLUSD)
	}
	return &Static{pools: m}
}

// PoolTVL looks up the configured TVL.
func (s *Static) PoolTVL(_ context.Context, token, chain string) (decimal.Decimal, bool, error) {
	tvl, ok := s.pools[poolKey(token, chain)]
	return tvl, ok, nil
}

// Chain tries each source in order and returns the first hit.
type Chain []Source

// PoolTVL walks the chained sources. A source error does not stop the walk;
// a later source may still have the pair.
func (c Chain) PoolTVL(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	var lastErr error
	for _, src := range c {
		tvl, ok, err := src.PoolTVL(ctx, token, chain)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return tvl, true, nil
		}
	}
	return decimal.Decimal{}, false, lastErr
}

var (
	_ Source = (*Static)(nil)
	_ Source = (Chain)(nil)
)
