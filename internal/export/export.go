package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/domalend/oracle/internal/domain"
)

// ValuationRow is one exported valuation with its score breakdown.
type ValuationRow struct {
	Token         string
	Name          string
	LivePriceUSD  float64
	AgeScore      float64
	DemandScore   float64
	QualityScore  float64
	SuffixTier    float64
	KeywordTier   float64
	LengthTier    float64
	CompositeRank float64
	Multiplier    float64
	FinalUSD      float64
	FixedPoint    string
}

// valuationHeaders are the column titles shared by the xlsx and Sheets exports.
var valuationHeaders = []any{
	"Token", "Name", "Live Price USD",
	"Age", "Demand", "Quality",
	"Suffix Tier", "Keyword Tier", "Length Tier",
	"Rank", "Multiplier", "Valuation USD", "Valuation (1e18)",
}

// Rows converts valuations into export rows, highest rank first.
func Rows(valuations []domain.ValuationResult) []ValuationRow {
	rows := lo.Map(valuations, func(v domain.ValuationResult, _ int) ValuationRow {
		b := v.Breakdown
		return ValuationRow{
			Token:         v.TokenAddress,
			Name:          v.DisplayName,
			LivePriceUSD:  v.LivePriceUSD,
			AgeScore:      b.AgeScore,
			DemandScore:   b.DemandScore,
			QualityScore:  b.QualityScore,
			SuffixTier:    b.SuffixTier,
			KeywordTier:   b.KeywordTier,
			LengthTier:    b.LengthTier,
			CompositeRank: v.CompositeRank,
			Multiplier:    v.QualityMultiplier,
			FinalUSD:      v.FinalValuationUSD,
			FixedPoint:    v.FinalValuationFixedPoint,
		}
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CompositeRank > rows[j].CompositeRank })
	return rows
}

func (r ValuationRow) values() []any {
	return []any{
		r.Token, r.Name, r.LivePriceUSD,
		r.AgeScore, r.DemandScore, r.QualityScore,
		r.SuffixTier, r.KeywordTier, r.LengthTier,
		r.CompositeRank, r.Multiplier, r.FinalUSD, r.FixedPoint,
	}
}

// SheetWriter writes cycle results to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, rows []ValuationRow) error
	AppendMonitoring(ctx context.Context, report domain.CycleReport) error
}

// Service exports cycle results after each cycle.
type Service struct {
	writer SheetWriter
}

// NewService creates a new export Service.
func NewService(writer SheetWriter) *Service {
	return &Service{writer: writer}
}

// AfterCycle appends a monitoring row for every cycle and rewrites the valuation sheet
// when the cycle produced valuations. Implements worker.AfterCycleHook.
func (s *Service) AfterCycle(ctx context.Context, report domain.CycleReport) error {
	if err := s.writer.AppendMonitoring(ctx, report); err != nil {
		return fmt.Errorf("appending monitoring row: %w", err)
	}

	if len(report.Valuations) == 0 {
		return nil
	}
	rows := Rows(report.Valuations)
	if err := s.writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("writing valuations: %w", err)
	}
	slog.Info("export: valuations written", "pipeline", report.Pipeline, "rows", len(rows))
	return nil
}
