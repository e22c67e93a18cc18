package liquidity

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bridge-router/internal/config"
)

const erc20ABIJSON = `[{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

type onchainPool struct {
	poolAddress  common.Address
	tokenAddress common.Address
	decimals     int32
	priceUSD     decimal.Decimal
}

// OnchainOptions parameterise the on-chain TVL reader.
type OnchainOptions struct {
	RPCURL  string
	Timeout time.Duration
	Pools   []config.LiquidityPoolConfig
}

// Onchain reads pool TVL from chain: the pool's token balance priced in USD.
type Onchain struct {
	opts      OnchainOptions
	pools     map[string]onchainPool
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds the on-chain source. Only pool entries carrying both a
// pool_address and token_address take part.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	pools := make(map[string]onchainPool)
	for _, p := range opts.Pools {
		if p.PoolAddress == "" || p.TokenAddress == "" {
			continue
		}
		decimals := p.TokenDecimals
		if decimals == 0 {
			decimals = 18
		}
		price := decimal.NewFromFloat(p.TokenPriceUSD)
		if price.Sign() <= 0 {
			price = decimal.NewFromInt(1)
		}
		pools[poolKey(p.Token, p.Chain)] = onchainPool{
			poolAddress:  common.HexToAddress(p.PoolAddress),
			tokenAddress: common.HexToAddress(p.TokenAddress),
			decimals:     decimals,
			priceUSD:     price,
		}
	}

	return &Onchain{
		opts:   opts,
		pools:  pools,
		logger: logger.With().Str("component", "onchain_liquidity").Logger(),
	}
}

// PoolTVL reads the pool's token balance and prices it in USD.
func (o *Onchain) PoolTVL(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	pool, ok := o.pools[poolKey(token, chain)]
	if !ok {
		return decimal.Decimal{}, false, nil
	}
	if o.opts.RPCURL == "" {
		return decimal.Decimal{}, false, errors.New("liquidity rpc url not configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	payload, err := erc20ABI.Pack("balanceOf", pool.poolAddress)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &pool.tokenAddress, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	outputs, err := erc20ABI.Unpack("balanceOf", res)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, false, errors.New("unexpected balanceOf response")
	}

	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, false, errors.New("failed to decode balanceOf output")
	}

	tvl := decimal.NewFromBigInt(balance, -pool.decimals).Mul(pool.priceUSD)
	return tvl, true, nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ Source = (*Onchain)(nil)
