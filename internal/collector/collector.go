package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/price"
	"github.com/domalend/oracle/internal/subgraph"
)

// LaunchQuoteDecimals is the decimals of the quote token initial valuations are recorded in.
const LaunchQuoteDecimals = 6

const hoursPerYear = 24 * 365.25

// TokenSource lists all tokenized assets.
type TokenSource interface {
	FetchTokens(ctx context.Context, limit int) ([]subgraph.FractionalToken, error)
}

// DetailSource returns per-name demand signals.
type DetailSource interface {
	FetchNameDetails(ctx context.Context, name string) (subgraph.NameDetails, error)
}

// PoolReader reads the live pool price of an asset.
type PoolReader interface {
	ReadPrice(ctx context.Context, pool common.Address) (price.PoolPrice, error)
}

// Collector builds one AssetRecord per eligible asset.
type Collector struct {
	tokens   TokenSource
	details  DetailSource
	pools    PoolReader
	limiter  *rate.Limiter
	maxItems int
	now      func() time.Time
}

// New creates a Collector. delay is the minimum spacing between assets; maxItems <= 0 means no cap.
func New(tokens TokenSource, details DetailSource, pools PoolReader, maxItems int, delay time.Duration) *Collector {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Collector{
		tokens:   tokens,
		details:  details,
		pools:    pools,
		limiter:  rate.NewLimiter(limit, 1),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Collect discovers all assets and returns their consolidated records.
// A discovery failure aborts the whole collection; per-asset failures fall back to defaults.
func (c *Collector) Collect(ctx context.Context) ([]domain.AssetRecord, error) {
	tokens, err := c.tokens.FetchTokens(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("collecting assets: %w", err)
	}

	eligible := lo.Filter(tokens, func(t subgraph.FractionalToken, _ int) bool {
		return !isBoughtOut(t)
	})
	if skipped := len(tokens) - len(eligible); skipped > 0 {
		slog.Info("Collector: skipped bought-out assets", "count", skipped)
	}

	records := make([]domain.AssetRecord, 0, len(eligible))
	for _, t := range eligible {
		if c.maxItems > 0 && len(records) >= c.maxItems {
			slog.Warn("Collector: max items per cycle reached", "max", c.maxItems, "discovered", len(eligible))
			break
		}

		addr, err := domain.NormalizeAddress(t.Address)
		if err != nil {
			slog.Warn("Collector: dropping asset with invalid address", "name", t.Name, "error", err)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("collecting assets: %w", err)
		}

		records = append(records, c.buildRecord(ctx, addr, t))
	}

	slog.Info("Collector: collection complete", "discovered", len(tokens), "records", len(records))
	return records, nil
}

func isBoughtOut(t subgraph.FractionalToken) bool {
	return t.BoughtOutAt != nil || domain.ParseLifecycleStatus(t.Status) == domain.LifecycleBoughtOut
}

func (c *Collector) buildRecord(ctx context.Context, addr string, t subgraph.FractionalToken) domain.AssetRecord {
	now := c.now()
	label, suffix := domain.SplitName(t.Name)

	rec := domain.AssetRecord{
		TokenAddress:      addr,
		DisplayName:       t.Name,
		Label:             label,
		TopLevelLabel:     suffix,
		NameLength:        utf8.RuneCountInString(label),
		TimeToExpiryYears: domain.DefaultExpiryYears,
		TotalSupply:       t.Params.TotalSupply,
		Decimals:          clampDecimals(t.Params.Decimals),
		LifecycleStatus:   domain.ParseLifecycleStatus(t.Status),
		PoolAddress:       t.PoolAddress,
	}

	if t.FractionalizedAt != nil {
		rec.AgeInYears = yearsBetween(*t.FractionalizedAt, now)
	}

	details, err := c.details.FetchNameDetails(ctx, t.Name)
	if err != nil {
		slog.Warn("Collector: detail query failed, using defaults", "token", addr, "name", t.Name, "error", err)
	} else {
		rec.OutstandingInterestCount = max(details.ActiveOffersCount, 0)
		if details.ExpiresAt != nil {
			rec.TimeToExpiryYears = yearsBetween(now, *details.ExpiresAt)
		}
	}

	rec.LivePriceUSD, rec.PriceSource = c.resolvePrice(ctx, addr, t)
	return rec
}

// resolvePrice walks the fallback chain: pool price, then launch price, then 0.
func (c *Collector) resolvePrice(ctx context.Context, addr string, t subgraph.FractionalToken) (float64, domain.PriceSource) {
	if t.PoolAddress != "" {
		pool, err := domain.ParseAddress(t.PoolAddress)
		if err != nil {
			slog.Warn("Collector: invalid pool address", "token", addr, "pool", t.PoolAddress)
		} else if pool != (common.Address{}) {
			pp, err := c.pools.ReadPrice(ctx, pool)
			if err != nil {
				slog.Warn("Collector: pool price unavailable, falling back", "token", addr, "pool", t.PoolAddress, "error", err)
			} else if p, ok := pp.PriceOf(common.HexToAddress(addr)); ok {
				return p, domain.PriceSourcePool
			} else {
				slog.Warn("Collector: asset is not a token of its pool", "token", addr, "pool", t.PoolAddress)
			}
		}
	}

	if p := LaunchPrice(t.Params); p > 0 {
		return p, domain.PriceSourceLaunch
	}
	return 0, domain.PriceSourceNone
}

// LaunchPrice derives a per-token USD price from the launch valuation and total supply.
// Returns 0 when either is missing or non-positive.
func LaunchPrice(p subgraph.LaunchParams) float64 {
	valuation := domain.ScaleDown(p.InitialValuation, LaunchQuoteDecimals)
	supply := domain.ScaleDown(p.TotalSupply, clampDecimals(p.Decimals))
	if !valuation.IsPositive() || !supply.IsPositive() {
		return 0
	}
	v := valuation.Div(supply).InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func yearsBetween(from, to time.Time) float64 {
	return max(to.Sub(from).Hours()/hoursPerYear, 0)
}

func clampDecimals(d int) uint8 {
	if d < 0 {
		return 0
	}
	if d > 77 {
		return 77
	}
	return uint8(d)
}
