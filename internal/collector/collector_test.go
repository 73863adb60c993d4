package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/price"
	"github.com/domalend/oracle/internal/subgraph"
)

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type mockTokenSource struct {
	tokens []subgraph.FractionalToken
	err    error
}

func (m *mockTokenSource) FetchTokens(_ context.Context, _ int) ([]subgraph.FractionalToken, error) {
	return m.tokens, m.err
}

type mockDetailSource struct {
	details map[string]subgraph.NameDetails
	err     error
}

func (m *mockDetailSource) FetchNameDetails(_ context.Context, name string) (subgraph.NameDetails, error) {
	if m.err != nil {
		return subgraph.NameDetails{}, m.err
	}
	d, ok := m.details[name]
	if !ok {
		return subgraph.NameDetails{}, subgraph.ErrNameNotFound
	}
	return d, nil
}

type mockPoolReader struct {
	prices map[common.Address]price.PoolPrice
	calls  int
}

func (m *mockPoolReader) ReadPrice(_ context.Context, pool common.Address) (price.PoolPrice, error) {
	m.calls++
	p, ok := m.prices[pool]
	if !ok {
		return price.PoolPrice{}, fmt.Errorf("%w: pool %s", price.ErrNoPrice, pool.Hex())
	}
	return p, nil
}

// sqrtPoolReader prices a single pool from a raw sqrtPriceX96 with 18/18 decimals.
type sqrtPoolReader struct {
	sqrt   *big.Int
	token0 common.Address
	token1 common.Address
	calls  int
}

func (r *sqrtPoolReader) ReadPrice(_ context.Context, pool common.Address) (price.PoolPrice, error) {
	r.calls++
	p, inv, ok := price.PriceFromSqrtX96(r.sqrt, 18, 18)
	if !ok {
		return price.PoolPrice{}, fmt.Errorf("%w: pool %s", price.ErrNoPrice, pool.Hex())
	}
	return price.PoolPrice{Pool: pool, Token0: r.token0, Token1: r.token1, Price: p, Inverse: inv}, nil
}

func sqrtX96For(p float64) *big.Int {
	f := new(big.Float).SetPrec(256).SetFloat64(p)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(256).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	out, _ := f.Int(nil)
	return out
}

func addr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func ptr[T any](v T) *T {
	return &v
}

func launchParams() subgraph.LaunchParams {
	// 2.5 USD total valuation over 1 whole token
	return subgraph.LaunchParams{InitialValuation: "2500000", TotalSupply: "1000000000000000000", Decimals: 18}
}

func newTestCollector(tokens TokenSource, details DetailSource, pools PoolReader, maxItems int) *Collector {
	c := New(tokens, details, pools, maxItems, 0)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollectExcludesBoughtOut(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "keep.com", Status: "ACTIVE", Params: launchParams()},
		{Address: addr(2), Name: "gone.com", Status: "ACTIVE", BoughtOutAt: ptr(fixedNow.Add(-time.Hour)), Params: launchParams()},
		{Address: addr(3), Name: "sold.com", Status: "BOUGHT_OUT", Params: launchParams()},
	}}

	c := newTestCollector(tokens, &mockDetailSource{}, &mockPoolReader{}, 0)
	records, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].DisplayName != "keep.com" {
		t.Errorf("record = %q, want keep.com", records[0].DisplayName)
	}
	for _, r := range records {
		if r.LifecycleStatus == domain.LifecycleBoughtOut {
			t.Errorf("bought-out record %s leaked", r.TokenAddress)
		}
	}
}

func TestCollectPoolPriceAboveCeilingFallsBackToLaunch(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "nft.com", Status: "ACTIVE", PoolAddress: addr(100), Params: launchParams()},
	}}
	pools := &sqrtPoolReader{
		sqrt:   sqrtX96For(2e15),
		token0: common.HexToAddress(addr(1)),
		token1: common.HexToAddress(addr(50)),
	}

	records, err := newTestCollector(tokens, &mockDetailSource{}, pools, 0).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pools.calls != 1 {
		t.Errorf("pool reads = %d, want 1", pools.calls)
	}
	if records[0].PriceSource != domain.PriceSourceLaunch {
		t.Errorf("PriceSource = %q, want launch", records[0].PriceSource)
	}
	if math.Abs(records[0].LivePriceUSD-2.5) > 1e-12 {
		t.Errorf("LivePriceUSD = %v, want 2.5", records[0].LivePriceUSD)
	}
}

func TestCollectUsesPoolPrice(t *testing.T) {
	asset := common.HexToAddress(addr(1))
	usd := common.HexToAddress(addr(50))
	poolAddr := common.HexToAddress(addr(100))

	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "nft.com", Status: "ACTIVE", PoolAddress: addr(100), Params: launchParams()},
	}}
	pools := &mockPoolReader{prices: map[common.Address]price.PoolPrice{
		// asset is token1, so its USD price is the inverse
		poolAddr: {Pool: poolAddr, Token0: usd, Token1: asset, Price: 0.25, Inverse: 4},
	}}

	records, err := newTestCollector(tokens, &mockDetailSource{}, pools, 0).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].PriceSource != domain.PriceSourcePool {
		t.Errorf("PriceSource = %q, want pool", records[0].PriceSource)
	}
	if records[0].LivePriceUSD != 4 {
		t.Errorf("LivePriceUSD = %v, want 4", records[0].LivePriceUSD)
	}
}

func TestCollectDefaultsWhenDetailsFail(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "nodot", Status: "ACTIVE"},
	}}
	details := &mockDetailSource{err: errors.New("index down")}

	records, err := newTestCollector(tokens, details, &mockPoolReader{}, 0).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := records[0]
	if r.OutstandingInterestCount != 0 {
		t.Errorf("OutstandingInterestCount = %d, want 0", r.OutstandingInterestCount)
	}
	if r.TimeToExpiryYears != domain.DefaultExpiryYears {
		t.Errorf("TimeToExpiryYears = %v, want %v", r.TimeToExpiryYears, domain.DefaultExpiryYears)
	}
	if r.TopLevelLabel != domain.UnknownSuffix || r.Label != "nodot" || r.NameLength != 5 {
		t.Errorf("name parse = %q/%q/%d", r.Label, r.TopLevelLabel, r.NameLength)
	}
	if r.LivePriceUSD != 0 || r.PriceSource != domain.PriceSourceNone {
		t.Errorf("price = %v (%s), want 0 (none)", r.LivePriceUSD, r.PriceSource)
	}
}

func TestCollectComputesAgeAndExpiry(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "nft.com", Status: "ACTIVE", FractionalizedAt: ptr(fixedNow.AddDate(-2, 0, 0))},
	}}
	details := &mockDetailSource{details: map[string]subgraph.NameDetails{
		"nft.com": {ExpiresAt: ptr(fixedNow.AddDate(8, 0, 0)), ActiveOffersCount: 12},
	}}

	records, err := newTestCollector(tokens, details, &mockPoolReader{}, 0).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := records[0]
	if math.Abs(r.AgeInYears-2) > 0.01 {
		t.Errorf("AgeInYears = %v, want ~2", r.AgeInYears)
	}
	if math.Abs(r.TimeToExpiryYears-8) > 0.01 {
		t.Errorf("TimeToExpiryYears = %v, want ~8", r.TimeToExpiryYears)
	}
	if r.OutstandingInterestCount != 12 {
		t.Errorf("OutstandingInterestCount = %d, want 12", r.OutstandingInterestCount)
	}
	if r.Label != "nft" || r.TopLevelLabel != "com" || r.NameLength != 3 {
		t.Errorf("name parse = %q/%q/%d", r.Label, r.TopLevelLabel, r.NameLength)
	}
}

func TestCollectDiscoveryFailure(t *testing.T) {
	tokens := &mockTokenSource{err: fmt.Errorf("%w: timeout", domain.ErrDiscovery)}

	records, err := newTestCollector(tokens, &mockDetailSource{}, &mockPoolReader{}, 0).Collect(context.Background())
	if !errors.Is(err, domain.ErrDiscovery) {
		t.Errorf("error = %v, want ErrDiscovery", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestCollectDropsInvalidAddressAndCapsItems(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: "0xnothex", Name: "bad.com", Status: "ACTIVE"},
		{Address: addr(1), Name: "a.com", Status: "ACTIVE"},
		{Address: addr(2), Name: "b.com", Status: "ACTIVE"},
		{Address: addr(3), Name: "c.com", Status: "ACTIVE"},
	}}

	records, err := newTestCollector(tokens, &mockDetailSource{}, &mockPoolReader{}, 2).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].DisplayName != "a.com" || records[1].DisplayName != "b.com" {
		t.Errorf("records = %s, %s", records[0].DisplayName, records[1].DisplayName)
	}
}

func TestCollectCanceledContext(t *testing.T) {
	tokens := &mockTokenSource{tokens: []subgraph.FractionalToken{
		{Address: addr(1), Name: "a.com", Status: "ACTIVE"},
		{Address: addr(2), Name: "b.com", Status: "ACTIVE"},
	}}
	c := New(tokens, &mockDetailSource{}, &mockPoolReader{}, 0, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLaunchPrice(t *testing.T) {
	tests := []struct {
		name   string
		params subgraph.LaunchParams
		want   float64
	}{
		{"one token", launchParams(), 2.5},
		{"million tokens", subgraph.LaunchParams{InitialValuation: "1000000000000", TotalSupply: "1000000000000000000000000", Decimals: 18}, 1},
		{"zero supply", subgraph.LaunchParams{InitialValuation: "1000000", TotalSupply: "0", Decimals: 18}, 0},
		{"missing valuation", subgraph.LaunchParams{TotalSupply: "1000", Decimals: 0}, 0},
		{"garbage", subgraph.LaunchParams{InitialValuation: "abc", TotalSupply: "1000", Decimals: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LaunchPrice(tt.params); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("LaunchPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}
