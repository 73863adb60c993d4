package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// SymbolMapping maps token symbols to CoinGecko IDs.
var SymbolMapping = map[string]string{
	"BTC":  "bitcoin",
	"WBTC": "wrapped-bitcoin",
	"ETH":  "ethereum",
	"WETH": "weth",
	"USDC": "usd-coin",
	"USDT": "tether",
	"DAI":  "dai",
	"SOL":  "solana",
	"LINK": "chainlink",
	"UNI":  "uniswap",
}

// CoinGeckoClient fetches USD prices from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewCoinGeckoClient creates a new CoinGecko API client. apiKey may be empty for the public tier.
func NewCoinGeckoClient(baseURL, apiKey string, delay time.Duration, maxRetries int) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchPrices fetches USD prices for the given symbols in one batched request.
// Returns a map of symbol -> priceInUSD; unknown or unpriced symbols are omitted.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	known := lo.Filter(symbols, func(s string, _ int) bool {
		_, ok := SymbolMapping[s]
		return ok
	})
	if len(known) == 0 {
		return map[string]float64{}, nil
	}

	ids := lo.Uniq(lo.Map(known, func(s string, _ int) string { return SymbolMapping[s] }))
	sort.Strings(ids)

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	body, err := c.fetchWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}

	// Parse: {"bitcoin":{"usd":65000},"ethereum":{"usd":3500},...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko response: %w", err)
	}

	result := make(map[string]float64, len(known))
	for _, symbol := range known {
		prices, ok := raw[SymbolMapping[symbol]]
		if !ok {
			continue
		}
		if usd, ok := prices["usd"]; ok {
			result[symbol] = usd
		}
	}

	return result, nil
}

// apiKeyHeader picks the paid or demo tier header based on the base URL.
func (c *CoinGeckoClient) apiKeyHeader() string {
	if strings.Contains(c.baseURL, "pro-api.coingecko.com") {
		return "x-cg-pro-api-key"
	}
	return "x-cg-demo-api-key"
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating CoinGecko request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(c.apiKeyHeader(), c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("CoinGecko request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading CoinGecko response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("CoinGecko rate limited (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
