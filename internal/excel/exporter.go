package excel

import (
	"fmt"
	"io"
	"time"

	"github.com/example/cardsched/pkg/models"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

var exportHeader = []interface{}{
	"ID", "Card ID", "Rating", "Reviewed At", "Elapsed Days",
	"Previous Stability", "New Stability", "Previous Difficulty", "New Difficulty",
	"Previous Due", "New Due", "Interval",
}

// ExportReviewLogs writes logs as an xlsx workbook to w, one row per review
func ExportReviewLogs(w io.Writer, logs []models.ReviewLog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, l := range logs {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			l.ID,
			l.CardID,
			l.Rating.String(),
			l.ReviewedAt.UTC().Format(time.RFC3339),
			l.ElapsedDays,
			l.PreviousStability,
			l.NewStability,
			l.PreviousDifficulty,
			l.NewDifficulty,
			l.PreviousDue.UTC().Format(time.RFC3339),
			l.NewDue.UTC().Format(time.RFC3339),
			l.Interval,
		}
		if err := f.SetSheetRow(exportSheet, cellName, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
