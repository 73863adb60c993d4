package export

import (
	"context"
	"fmt"
	"time"

	sheets "google.golang.org/api/sheets/v4"

	"github.com/domalend/oracle/internal/domain"
)

const monitoringSheet = "MONITORING"

// monitoringHeaders are the columns of the MONITORING sheet, one row per cycle.
var monitoringHeaders = []any{
	"Date", "Pipeline", "Collected", "Successful", "Skipped", "Failed",
	"Duration (s)", "Avg Rank", "Total Valuation USD", "Error",
}

// buildMonitoringRow builds the MONITORING row for one cycle.
func buildMonitoringRow(report domain.CycleReport) []any {
	var rankSum, totalUSD float64
	for _, v := range report.Valuations {
		rankSum += v.CompositeRank
		totalUSD += v.FinalValuationUSD
	}
	var avgRank any
	if n := len(report.Valuations); n > 0 {
		avgRank = rankSum / float64(n)
	}

	return []any{
		report.FinishedAt.UTC().Format(time.DateTime),
		report.Pipeline,
		float64(report.Collected),
		float64(report.Summary.Successful),
		float64(report.Summary.Skipped),
		float64(report.Summary.Failed),
		report.Duration().Seconds(),
		avgRank,
		totalUSD,
		report.ErrMessage(),
	}
}

// AppendMonitoring ensures the MONITORING sheet exists, writes the header row if the sheet
// is new or empty, then appends one row for the cycle.
func (w *SheetsWriter) AppendMonitoring(ctx context.Context, report domain.CycleReport) error {
	meta, err := w.ensureSheets(ctx, monitoringSheet)
	if err != nil {
		return fmt.Errorf("ensuring %s sheet: %w", monitoringSheet, err)
	}

	existing, err := w.svc.Spreadsheets.Values.Get(
		w.spreadsheetID, monitoringSheet+"!A1",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", monitoringSheet, err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			monitoringSheet+"!A1",
			&sheets.ValueRange{Values: [][]any{monitoringHeaders}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", monitoringSheet, err)
		}
		if err := w.freezeHeader(ctx, meta[monitoringSheet]); err != nil {
			return fmt.Errorf("formatting %s sheet: %w", monitoringSheet, err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		monitoringSheet+"!A:J",
		&sheets.ValueRange{Values: [][]any{buildMonitoringRow(report)}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s row: %w", monitoringSheet, err)
	}

	return nil
}

// freezeHeader freezes and bolds the first row.
func (w *SheetsWriter) freezeHeader(ctx context.Context, sheet sheetMeta) error {
	// #D9EAD3
	lightGreen := &sheets.Color{Red: 0.851, Green: 0.918, Blue: 0.827}

	reqs := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheet.id,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(monitoringHeaders)),
				},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor:     lightGreen,
					TextFormat:          &sheets.TextFormat{Bold: true},
					HorizontalAlignment: "CENTER",
				}},
				Fields: "userEnteredFormat(backgroundColor,textFormat,horizontalAlignment)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheet.id,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}
