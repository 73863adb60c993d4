package subgraph

import "time"

// FractionalToken is one tokenized asset as reported by the index.
type FractionalToken struct {
	Address          string       `json:"address"`
	Name             string       `json:"name"`
	FractionalizedAt *time.Time   `json:"fractionalizedAt"`
	BoughtOutAt      *time.Time   `json:"boughtOutAt"`
	Status           string       `json:"status"`
	PoolAddress      string       `json:"poolAddress"`
	Params           LaunchParams `json:"params"`
}

// LaunchParams are the fractionalization parameters recorded at launch.
// InitialValuation is denominated in quote-token base units.
type LaunchParams struct {
	InitialValuation string `json:"initialValuation"`
	TotalSupply      string `json:"totalSupply"`
	Symbol           string `json:"symbol"`
	Decimals         int    `json:"decimals"`
}

// NameDetails are the per-name demand signals.
type NameDetails struct {
	ExpiresAt         *time.Time `json:"expiresAt"`
	ActiveOffersCount int        `json:"activeOffersCount"`
}
