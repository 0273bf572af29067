package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	SheetSummary      = "Summary"
	SheetDistribution = "Distribution"
	SheetHistory      = "History"
)

// Exporter writes dashboard data as an XLSX workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(ctx context.Context, w io.Writer, data domain.DashboardExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, sheet := range []string{SheetDistribution, SheetHistory} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create %s sheet: %w", sheet, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Total detections", data.Summary.TotalDetections},
		{"Total crops", data.Summary.TotalCrops},
		{"Healthy", data.Summary.Healthy},
		{"Infected", data.Summary.Infected},
	}
	if err := writeRows(f, SheetSummary, header, summary); err != nil {
		return err
	}

	distribution := [][]any{{"Disease", "Code", "Count"}}
	for _, slice := range data.Chart {
		distribution = append(distribution, []any{slice.Label, slice.Code, slice.Count})
	}
	if err := writeRows(f, SheetDistribution, header, distribution); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	history := [][]any{{"ID", "Disease", "Status", "Confidence", "Detected at", "Image URL"}}
	for _, row := range data.History {
		history = append(history, []any{row.ID, row.DisplayName, row.Status, row.Confidence, row.DetectedAt, row.ImageURL})
	}
	if err := writeRows(f, SheetHistory, header, history); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, rows [][]any) error {
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, idx+1, err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, idx+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
