package provider

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Request identifies one cross-chain transfer to be quoted.
type Request struct {
	SourceChain      string
	DestinationChain string
	SourceToken      string
	DestinationToken string
	Amount           decimal.Decimal
}

// Quote is a single provider's answer for a request.
type Quote struct {
	OutputAmount         decimal.Decimal
	FeeUSD               decimal.Decimal
	EstimatedTimeSeconds int64
}

// Adapter is the contract every bridge provider integration satisfies.
// The engine never constructs adapters itself; they are registered with a
// Registry keyed by a stable provider id.
type Adapter interface {
	SupportsRoute(sourceChain, destinationChain, token string) bool
	GetQuote(ctx context.Context, req Request) (Quote, error)
}

// Descriptor declares a provider's identity and route support. Immutable
// within a request.
type Descriptor struct {
	ID     string
	Name   string
	Chains []string
	Tokens []string
	Active bool
}

// SupportsChain reports whether the descriptor lists the chain.
func (d Descriptor) SupportsChain(chain string) bool {
	return containsFold(d.Chains, chain)
}

// SupportsToken reports whether the descriptor lists the token. An empty
// token list means every token is accepted.
func (d Descriptor) SupportsToken(token string) bool {
	if len(d.Tokens) == 0 {
		return true
	}
	return containsFold(d.Tokens, token)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
