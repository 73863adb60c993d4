package domain

// Score weights used to combine the 0-10 sub-scores into the 0-100 composite rank.
const (
	AgeWeight     = 1.5
	DemandWeight  = 1.0
	QualityWeight = 7.5
)

// ScoreBreakdown keeps the intermediate scores for auditing a valuation.
type ScoreBreakdown struct {
	AgeScore      float64 `json:"ageScore"`
	DemandScore   float64 `json:"demandScore"`
	QualityScore  float64 `json:"qualityScore"`
	SuffixTier    float64 `json:"suffixTier"`
	KeywordTier   float64 `json:"keywordTier"`
	LengthTier    float64 `json:"lengthTier"`
	AgeWeight     float64 `json:"ageWeight"`
	DemandWeight  float64 `json:"demandWeight"`
	QualityWeight float64 `json:"qualityWeight"`
}

// ValuationResult is the scoring engine output for one AssetRecord.
type ValuationResult struct {
	TokenAddress             string         `json:"tokenAddress"`
	DisplayName              string         `json:"displayName"`
	CompositeRank            float64        `json:"compositeRank"`
	QualityMultiplier        float64        `json:"qualityMultiplier"`
	LivePriceUSD             float64        `json:"livePriceUsd"`
	FinalValuationUSD        float64        `json:"finalValuationUsd"`
	FinalValuationFixedPoint string         `json:"finalValuationFixedPoint"`
	Breakdown                ScoreBreakdown `json:"scoreBreakdown"`
}

// PriceUpdate converts the result into a Broadcaster input.
func (v ValuationResult) PriceUpdate() PriceUpdate {
	return PriceUpdate{
		TokenAddress:        v.TokenAddress,
		ValuationFixedPoint: v.FinalValuationFixedPoint,
		Label:               v.DisplayName,
	}
}
