package valuation

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/domalend/oracle/internal/domain"
)

// Engine scores AssetRecords into ValuationResults. It is stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a scoring Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score computes the composite rank, quality multiplier and final valuation of rec.
func (e *Engine) Score(rec domain.AssetRecord) (domain.ValuationResult, error) {
	if !finite(rec.LivePriceUSD) || rec.LivePriceUSD < 0 {
		return domain.ValuationResult{}, fmt.Errorf("%w: live price %v for %s", domain.ErrComputation, rec.LivePriceUSD, rec.TokenAddress)
	}

	age := AgeScore(rec.AgeInYears, rec.TimeToExpiryYears)
	demand := DemandScore(rec.OutstandingInterestCount)

	suffixTier := SuffixTier(rec.TopLevelLabel)
	keywordTier := KeywordTier(rec.Label)
	lengthTier := LengthTier(rec.NameLength)
	quality := SuffixWeight*suffixTier + KeywordWeight*keywordTier + LengthWeight*lengthTier

	rank := CompositeRank(age, demand, quality)
	multiplier := QualityMultiplier(rank)
	final := rec.LivePriceUSD * multiplier

	for _, v := range []float64{age, demand, quality, rank, multiplier, final} {
		if !finite(v) {
			return domain.ValuationResult{}, fmt.Errorf("%w: non-finite score for %s", domain.ErrComputation, rec.TokenAddress)
		}
	}

	fixed, err := domain.ToFixedPoint(final)
	if err != nil {
		return domain.ValuationResult{}, fmt.Errorf("converting valuation of %s: %w", rec.TokenAddress, err)
	}

	return domain.ValuationResult{
		TokenAddress:             rec.TokenAddress,
		DisplayName:              rec.DisplayName,
		CompositeRank:            rank,
		QualityMultiplier:        multiplier,
		LivePriceUSD:             rec.LivePriceUSD,
		FinalValuationUSD:        final,
		FinalValuationFixedPoint: fixed,
		Breakdown: domain.ScoreBreakdown{
			AgeScore:      age,
			DemandScore:   demand,
			QualityScore:  quality,
			SuffixTier:    suffixTier,
			KeywordTier:   keywordTier,
			LengthTier:    lengthTier,
			AgeWeight:     domain.AgeWeight,
			DemandWeight:  domain.DemandWeight,
			QualityWeight: domain.QualityWeight,
		},
	}, nil
}

// AgeScore combines longevity and remaining runway into a 0-10 score.
// A brand-new asset still scores 0.5 from the longevity floor.
func AgeScore(ageYears, expiryYears float64) float64 {
	longevity := math.Min(math.Max(ageYears, 0)*5+5, 50)
	runway := math.Min(math.Max(expiryYears, 0)*10, 50)
	return (longevity + runway) / 10
}

// DemandScore maps outstanding offers to a 5-10 score.
func DemandScore(offers int) float64 {
	return (50 + math.Min(float64(max(offers, 0))*10, 50)) / 10
}

// CompositeRank weights the sub-scores into [0, 100].
func CompositeRank(age, demand, quality float64) float64 {
	rank := age*domain.AgeWeight + demand*domain.DemandWeight + quality*domain.QualityWeight
	return lo.Clamp(rank, 0, 100)
}

// QualityMultiplier is piecewise-linear over the rank:
// [0,30] -> [0.5,0.7], (30,70] -> (0.7,1.0], (70,100] -> (1.0,1.2].
func QualityMultiplier(rank float64) float64 {
	rank = lo.Clamp(rank, 0, 100)
	switch {
	case rank <= 30:
		return 0.5 + (rank/30)*0.2
	case rank <= 70:
		return 0.7 + ((rank-30)/40)*0.3
	default:
		return 1.0 + ((rank-70)/30)*0.2
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
