package valuation

import "strings"

// Quality sub-score weights.
const (
	SuffixWeight  = 0.4
	KeywordWeight = 0.35
	LengthWeight  = 0.25
)

const (
	defaultSuffixTier  = 5.0
	unknownSuffixTier  = 3.0
	defaultKeywordTier = 4.0
)

// suffixTiers rates top-level labels on a 0-10 scale.
var suffixTiers = map[string]float64{
	"com":  10,
	"ai":   9,
	"io":   8.5,
	"net":  8,
	"org":  8,
	"co":   8,
	"xyz":  7,
	"app":  7,
	"dev":  7,
	"eth":  7,
	"tech": 6,
	"info": 5,
	"biz":  4,
}

type keywordTier struct {
	tier  float64
	terms []string
}

// keywordTiers are checked highest tier first.
var keywordTiers = []keywordTier{
	{10, []string{"ai", "nft", "crypto", "defi", "web3", "bitcoin", "btc", "eth", "dao", "meta"}},
	{8, []string{"bank", "pay", "finance", "token", "coin", "trade", "swap", "chain", "cloud", "game"}},
	{6, []string{"shop", "app", "tech", "data", "labs", "dev", "store", "market", "home", "health"}},
}

// SuffixTier returns the tier of a top-level label.
func SuffixTier(suffix string) float64 {
	suffix = strings.ToLower(suffix)
	if t, ok := suffixTiers[suffix]; ok {
		return t
	}
	if suffix == "" || suffix == "unknown" {
		return unknownSuffixTier
	}
	return defaultSuffixTier
}

// KeywordTier returns the highest tier whose term occurs in label (case-insensitive).
func KeywordTier(label string) float64 {
	label = strings.ToLower(label)
	for _, kt := range keywordTiers {
		for _, term := range kt.terms {
			if strings.Contains(label, term) {
				return kt.tier
			}
		}
	}
	return defaultKeywordTier
}

// LengthTier rates shorter names higher: 1-5 -> 10, 6-10 -> 7, otherwise 4.
func LengthTier(length int) float64 {
	switch {
	case length >= 1 && length <= 5:
		return 10
	case length >= 6 && length <= 10:
		return 7
	default:
		return 4
	}
}
