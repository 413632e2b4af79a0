package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stempelwerk/stempelgo/internal/models"
)

// DaySheet describes one attendance report page
type DaySheet struct {
	TerminalName string
	Date         string // YYYY-MM-DD
	Events       []models.AttendanceEvent
}

var kindLabels = map[models.EventKind]string{
	models.EventCheckIn:    "Check-In",
	models.EventCheckOut:   "Check-Out",
	models.EventBreakStart: "Break Start",
	models.EventBreakEnd:   "Break End",
}

// GenerateDaySheet renders the day's stamped events as a printable PDF
func GenerateDaySheet(sheet DaySheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Attendance Sheet - %s", sheet.Date))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Terminal: %s", sheet.TerminalName))
	pdf.Ln(12)

	// Table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(35, 8, "Time", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Action", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Auth", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Synced", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, ev := range sheet.Events {
		stamped := time.UnixMilli(ev.Timestamp).Format("15:04:05")
		label := kindLabels[ev.Kind]
		if label == "" {
			label = string(ev.Kind)
		}
		synced := "no"
		if ev.SyncStatus == models.SyncSynced {
			synced = "yes"
		}
		pdf.CellFormat(35, 7, stamped, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, ev.UserName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, string(ev.AuthMethod), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, synced, "1", 1, "L", false, 0, "")
	}

	if len(sheet.Events) == 0 {
		pdf.Ln(4)
		pdf.Cell(0, 8, "No events recorded.")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
