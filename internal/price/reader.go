package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPrice indicates the pool state did not yield a sane price.
var ErrNoPrice = errors.New("no price available")

const poolABIJSON = `[
	{"type":"function","name":"slot0","stateMutability":"view","inputs":[],"outputs":[
		{"name":"sqrtPriceX96","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"observationIndex","type":"uint16"},
		{"name":"observationCardinality","type":"uint16"},
		{"name":"observationCardinalityNext","type":"uint16"},
		{"name":"feeProtocol","type":"uint8"},
		{"name":"unlocked","type":"bool"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	poolABI  = mustParseABI(poolABIJSON)
	erc20ABI = mustParseABI(erc20ABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parsing ABI: %v", err))
	}
	return parsed
}

// PoolPrice is a sanity-checked snapshot of a concentrated-liquidity pool.
type PoolPrice struct {
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Decimals0 uint8
	Decimals1 uint8
	Symbol0   string
	Symbol1   string
	Price     float64 // token0 in units of token1
	Inverse   float64 // token1 in units of token0
}

// PriceOf returns the price of token in units of the other pool token.
func (p PoolPrice) PriceOf(token common.Address) (float64, bool) {
	switch token {
	case p.Token0:
		return p.Price, true
	case p.Token1:
		return p.Inverse, true
	default:
		return 0, false
	}
}

// Reader reads pool prices straight from chain state.
type Reader struct {
	caller bind.ContractCaller
	cache  *tokenCache
}

// NewReader creates a Reader over any contract caller (usually *ethclient.Client).
func NewReader(caller bind.ContractCaller) *Reader {
	return &Reader{
		caller: caller,
		cache:  newTokenCache(),
	}
}

// ReadPrice reads slot0, both token addresses and their decimals.
// It returns ErrNoPrice when the resulting price fails the sanity checks.
func (r *Reader) ReadPrice(ctx context.Context, pool common.Address) (PoolPrice, error) {
	opts := &bind.CallOpts{Context: ctx}
	contract := bind.NewBoundContract(pool, poolABI, r.caller, nil, nil)

	var slot0 []interface{}
	if err := contract.Call(opts, &slot0, "slot0"); err != nil {
		return PoolPrice{}, fmt.Errorf("reading slot0 of %s: %w", pool.Hex(), err)
	}
	sqrtPriceX96, err := toBigInt(slot0[0])
	if err != nil {
		return PoolPrice{}, fmt.Errorf("decoding slot0 of %s: %w", pool.Hex(), err)
	}

	token0, err := callAddress(opts, contract, "token0")
	if err != nil {
		return PoolPrice{}, fmt.Errorf("reading token0 of %s: %w", pool.Hex(), err)
	}
	token1, err := callAddress(opts, contract, "token1")
	if err != nil {
		return PoolPrice{}, fmt.Errorf("reading token1 of %s: %w", pool.Hex(), err)
	}

	meta0, err := r.tokenMeta(ctx, token0)
	if err != nil {
		return PoolPrice{}, err
	}
	meta1, err := r.tokenMeta(ctx, token1)
	if err != nil {
		return PoolPrice{}, err
	}

	price, inverse, ok := PriceFromSqrtX96(sqrtPriceX96, meta0.decimals, meta1.decimals)
	if !ok {
		return PoolPrice{}, fmt.Errorf("%w: pool %s sqrtPriceX96=%s", ErrNoPrice, pool.Hex(), sqrtPriceX96)
	}

	return PoolPrice{
		Pool:      pool,
		Token0:    token0,
		Token1:    token1,
		Decimals0: meta0.decimals,
		Decimals1: meta1.decimals,
		Symbol0:   meta0.symbol,
		Symbol1:   meta1.symbol,
		Price:     price,
		Inverse:   inverse,
	}, nil
}

// TokenDecimals returns the ERC-20 decimals of token, cached after the first read.
func (r *Reader) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	meta, err := r.tokenMeta(ctx, token)
	if err != nil {
		return 0, err
	}
	return meta.decimals, nil
}

func (r *Reader) tokenMeta(ctx context.Context, token common.Address) (tokenMeta, error) {
	if cached, ok := r.cache.get(token); ok {
		return cached, nil
	}

	opts := &bind.CallOpts{Context: ctx}
	contract := bind.NewBoundContract(token, erc20ABI, r.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(opts, &out, "decimals"); err != nil {
		return tokenMeta{}, fmt.Errorf("reading decimals of %s: %w", token.Hex(), err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return tokenMeta{}, fmt.Errorf("unexpected decimals type %T for %s", out[0], token.Hex())
	}

	meta := tokenMeta{decimals: decimals}

	// Some tokens return bytes32 symbols; the symbol is informational only.
	var symOut []interface{}
	if err := contract.Call(opts, &symOut, "symbol"); err == nil {
		meta.symbol, _ = symOut[0].(string)
	} else {
		slog.Debug("PoolPriceReader: symbol unavailable", "token", token.Hex(), "error", err)
	}

	r.cache.set(token, meta)
	return meta, nil
}

func callAddress(opts *bind.CallOpts, contract *bind.BoundContract, method string) (common.Address, error) {
	var out []interface{}
	if err := contract.Call(opts, &out, method); err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s type %T", method, out[0])
	}
	return addr, nil
}
