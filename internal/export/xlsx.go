package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxValuationSheet = "Valuations"
	xlsxSummarySheet   = "Summary"
)

// WriteXLSX renders the valuation report as an .xlsx workbook.
func WriteXLSX(w io.Writer, rows []ValuationRow, at time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxValuationSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	header := valuationHeaders
	if err := f.SetSheetRow(xlsxValuationSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(xlsxValuationSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9EAD3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(valuationHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxValuationSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(xlsxValuationSheet, "A", "A", 44); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxValuationSheet, "B", "B", 24); err != nil {
		return err
	}
	if err := f.SetPanes(xlsxValuationSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.NewSheet(xlsxSummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	var totalUSD float64
	for _, r := range rows {
		totalUSD += r.FinalUSD
	}
	summary := [][]any{
		{"Generated", at.UTC().Format(time.RFC3339)},
		{"Assets", len(rows)},
		{"Total Valuation USD", totalUSD},
	}
	for i, line := range summary {
		if err := f.SetSheetRow(xlsxSummarySheet, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
