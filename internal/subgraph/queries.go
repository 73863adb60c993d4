package subgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/domalend/oracle/internal/domain"
)

// ErrNameNotFound is returned when the index has no record for a name.
var ErrNameNotFound = errors.New("name not found")

const fractionalTokensQuery = `query FractionalTokens($first: Int!, $skip: Int!) {
  fractionalTokens(first: $first, skip: $skip) {
    address
    name
    fractionalizedAt
    boughtOutAt
    status
    poolAddress
    params {
      initialValuation
      totalSupply
      symbol
      decimals
    }
  }
}`

const nameDetailsQuery = `query NameDetails($name: String!) {
  name(name: $name) {
    expiresAt
    activeOffersCount
  }
}`

// FetchTokens pages through all fractionalized tokens. A limit > 0 caps the result.
// Any failure is wrapped in domain.ErrDiscovery.
func (c *Client) FetchTokens(ctx context.Context, limit int) ([]FractionalToken, error) {
	var all []FractionalToken
	for skip := 0; ; skip += c.pageSize {
		first := c.pageSize
		if limit > 0 && limit-len(all) < first {
			first = limit - len(all)
		}

		var page struct {
			FractionalTokens []FractionalToken `json:"fractionalTokens"`
		}
		vars := map[string]any{"first": first, "skip": skip}
		if err := c.query(ctx, fractionalTokensQuery, vars, &page); err != nil {
			return nil, fmt.Errorf("%w: fetching tokens (skip=%d): %w", domain.ErrDiscovery, skip, err)
		}

		all = append(all, page.FractionalTokens...)
		if len(page.FractionalTokens) < first || (limit > 0 && len(all) >= limit) {
			break
		}
	}
	return all, nil
}

// FetchNameDetails returns expiry and outstanding offers for a display name.
func (c *Client) FetchNameDetails(ctx context.Context, name string) (NameDetails, error) {
	var resp struct {
		Name *NameDetails `json:"name"`
	}
	if err := c.query(ctx, nameDetailsQuery, map[string]any{"name": name}, &resp); err != nil {
		return NameDetails{}, fmt.Errorf("fetching details for %s: %w", name, err)
	}
	if resp.Name == nil {
		return NameDetails{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	return *resp.Name, nil
}
