package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultExpiryYears is used when the expiry of an asset is unknown.
const DefaultExpiryYears = 1.0

// UnknownSuffix is the top-level label assigned to names without a dot.
const UnknownSuffix = "unknown"

// LifecycleStatus represents where a tokenized asset is in its lifecycle.
type LifecycleStatus string

const (
	LifecycleActive    LifecycleStatus = "active"
	LifecycleBoughtOut LifecycleStatus = "boughtOut"
	LifecycleOther     LifecycleStatus = "other"
)

// ParseLifecycleStatus maps an index status string to a LifecycleStatus.
func ParseLifecycleStatus(s string) LifecycleStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE", "FRACTIONALIZED", "LISTED":
		return LifecycleActive
	case "BOUGHT_OUT", "BOUGHTOUT", "REDEEMED":
		return LifecycleBoughtOut
	default:
		return LifecycleOther
	}
}

// PriceSource records which step of the fallback chain produced a live price.
type PriceSource string

const (
	PriceSourcePool   PriceSource = "pool"
	PriceSourceLaunch PriceSource = "launch"
	PriceSourceNone   PriceSource = "none"
)

// AssetRecord is one tokenized asset under valuation, rebuilt every collection cycle.
type AssetRecord struct {
	TokenAddress             string          `json:"tokenAddress"`
	DisplayName              string          `json:"displayName"`
	Label                    string          `json:"label"`
	TopLevelLabel            string          `json:"topLevelLabel"`
	NameLength               int             `json:"nameLength"`
	AgeInYears               float64         `json:"ageInYears"`
	TimeToExpiryYears        float64         `json:"timeToExpiryYears"`
	OutstandingInterestCount int             `json:"outstandingInterestCount"`
	LivePriceUSD             float64         `json:"livePriceUsd"`
	PriceSource              PriceSource     `json:"priceSource"`
	TotalSupply              string          `json:"totalSupply"`
	Decimals                 uint8           `json:"decimals"`
	LifecycleStatus          LifecycleStatus `json:"lifecycleStatus"`
	PoolAddress              string          `json:"poolAddress,omitempty"`
}

// SplitName splits a display name on its last dot into (label, suffix).
// A name without a dot keeps the whole string as label and gets UnknownSuffix.
func SplitName(name string) (label, suffix string) {
	name = strings.TrimSpace(name)
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return strings.TrimSuffix(name, "."), UnknownSuffix
	}
	return name[:i], name[i+1:]
}

// NormalizeAddress validates a 20-byte hex address and returns it lower-cased.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", fmt.Errorf("%w: %q: missing 0x prefix", ErrInvalidAddress, addr)
	}
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return strings.ToLower(addr), nil
}

// ParseAddress validates addr and converts it to a go-ethereum address.
func ParseAddress(addr string) (common.Address, error) {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(norm), nil
}
