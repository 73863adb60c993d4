package external

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/domalend/oracle/internal/domain"
)

// PriceFetcher returns USD prices for symbols.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Service turns public index prices into oracle updates for a fixed symbol -> token map.
type Service struct {
	prices PriceFetcher
	repo   QuoteRepository // optional
	tokens map[string]string
}

// NewService creates a new crypto price source. repo may be nil.
// Entries with an invalid token address are dropped with a warning.
func NewService(prices PriceFetcher, repo QuoteRepository, tokens map[string]string) *Service {
	valid := make(map[string]string, len(tokens))
	for symbol, addr := range tokens {
		norm, err := domain.NormalizeAddress(addr)
		if err != nil {
			slog.Warn("CryptoPriceSource: ignoring token with invalid address", "symbol", symbol, "error", err)
			continue
		}
		if _, ok := SymbolMapping[symbol]; !ok {
			slog.Warn("CryptoPriceSource: ignoring symbol without price index mapping", "symbol", symbol)
			continue
		}
		valid[symbol] = norm
	}
	return &Service{prices: prices, repo: repo, tokens: valid}
}

// Symbols returns the configured symbols in sorted order.
func (s *Service) Symbols() []string {
	symbols := lo.Keys(s.tokens)
	sort.Strings(symbols)
	return symbols
}

// PriceUpdates fetches current prices and converts them into Broadcaster input, sorted by symbol.
// Symbols the index did not price are skipped.
func (s *Service) PriceUpdates(ctx context.Context) ([]domain.PriceUpdate, error) {
	symbols := s.Symbols()
	if len(symbols) == 0 {
		return nil, nil
	}

	prices, err := s.prices.FetchPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("fetching crypto prices: %w", err)
	}

	updates := make([]domain.PriceUpdate, 0, len(prices))
	for _, symbol := range symbols {
		usd, ok := prices[symbol]
		if !ok {
			slog.Warn("CryptoPriceSource: no price returned", "symbol", symbol)
			continue
		}
		fixed, err := domain.ToFixedPoint(usd)
		if err != nil {
			slog.Warn("CryptoPriceSource: unusable price", "symbol", symbol, "price", usd, "error", err)
			continue
		}

		if s.repo != nil {
			if err := s.repo.SaveQuote(ctx, symbol, decimal.NewFromFloat(usd)); err != nil {
				slog.Warn("CryptoPriceSource: failed to store quote", "symbol", symbol, "error", err)
			}
		}

		updates = append(updates, domain.PriceUpdate{
			TokenAddress:        s.tokens[symbol],
			ValuationFixedPoint: fixed,
			Label:               symbol,
		})
	}

	return updates, nil
}
