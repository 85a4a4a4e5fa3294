package importer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"devsync/internal"
)

const (
	runsSheet     = "Runs"
	discardsSheet = "Discards"
)

// ExportRunsToXLSX writes a report with one summary row per run and the
// discard trail of those runs.
func ExportRunsToXLSX(runs []internal.RunRow, discards []internal.DiscardRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), runsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(discardsSheet); err != nil {
		return err
	}

	runHeaders := []any{
		"run_id", "family", "source_path", "source_hash", "status", "error",
		"total", "accepted", "discarded", "truncated", "stored", "skipped", "created_at",
	}
	if err := f.SetSheetRow(runsSheet, "A1", &runHeaders); err != nil {
		return err
	}
	for i, run := range runs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			run.RunID, string(run.Family), run.SourcePath, run.SourceHash, string(run.Status), run.Error,
			run.Total, run.Accepted, run.Discarded, run.Truncated, run.Stored, run.Skipped, run.CreatedAt,
		}
		if err := f.SetSheetRow(runsSheet, cell, &row); err != nil {
			return err
		}
	}

	discardHeaders := []any{"run_id", "line_no", "reason", "raw_line"}
	if err := f.SetSheetRow(discardsSheet, "A1", &discardHeaders); err != nil {
		return err
	}
	for i, d := range discards {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{d.RunID, d.LineNo, d.Reason, d.RawLine}
		if err := f.SetSheetRow(discardsSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportRun writes the report for a stored run.
func (s *Service) ExportRun(ctx context.Context, runID, outputPath string) (internal.RunRow, int, error) {
	run, err := s.db.MustRun(ctx, runID)
	if err != nil {
		return internal.RunRow{}, 0, err
	}
	discards, err := s.db.GetDiscards(ctx, runID)
	if err != nil {
		return internal.RunRow{}, 0, err
	}
	if err := ExportRunsToXLSX([]internal.RunRow{run}, discards, outputPath); err != nil {
		return internal.RunRow{}, 0, err
	}
	return run, len(discards), nil
}

// ExportResult writes one report covering every run of an import.
func (s *Service) ExportResult(ctx context.Context, result Result, outputPath string) error {
	runs := make([]internal.RunRow, 0, len(result.Runs))
	var discards []internal.DiscardRow
	for _, r := range result.Runs {
		stored, err := s.db.MustRun(ctx, r.RunID)
		if err != nil {
			return err
		}
		runs = append(runs, stored)
		rows, err := s.db.GetDiscards(ctx, r.RunID)
		if err != nil {
			return err
		}
		discards = append(discards, rows...)
	}
	return ExportRunsToXLSX(runs, discards, outputPath)
}
