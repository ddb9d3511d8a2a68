package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"steammatch/internal/models"
)

// WriteRoundStats renders in-memory round statistics to an xlsx workbook at
// path, one row per MatchActively call. This is an on-demand export, not a persisted
// history store: the source data (models.RoundStat) only lives as long as
// the process that produced it.
func WriteRoundStats(stats []models.RoundStat, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Rounds"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"SteamID", "StartedAt", "FinishedAt", "CandidatesHit", "TradesSent", "ItemsGiven", "ItemsTaken", "Aborted", "AbortReason"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, s := range stats {
		row := i + 2
		values := []interface{}{
			s.SteamID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.FinishedAt.Format("2006-01-02 15:04:05"),
			s.CandidatesHit,
			s.TradesSent,
			s.ItemsGiven,
			s.ItemsTaken,
			s.Aborted,
			s.AbortReason,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
