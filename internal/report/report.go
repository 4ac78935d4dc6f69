// Package report renders attendance as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheet = "Sheet1"

// AdminDay writes the attendance of all active users for dateKey, followed by the
// status counts. Times are shown in loc.
func AdminDay(w io.Writer, dateKey string, rows []schema.AdminRow, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := dateKey
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return err
	}

	if err := writeHeader(f, sheet, "Name", "User ID", "In", "Out", "Status"); err != nil {
		return err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{r.FullName, r.UserID, clock(r.InTime, loc), clock(r.OutTime, loc), string(r.Status)}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	sum := attendance.Summarize(rows)
	totals := [][]any{
		{"Total", sum.Total},
		{string(schema.StatusOK), sum.OK},
		{string(schema.StatusLate), sum.Late},
		{string(schema.StatusAbsent), sum.Absent},
		{string(schema.StatusIncomplete), sum.Incomplete},
	}
	start := len(rows) + 3
	for i, t := range totals {
		cell, _ := excelize.CoordinatesToCellName(1, start+i)
		row := t
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
		return err
	}
	return write(f, w)
}

// History writes one row per day of monthKey for user.
func History(w io.Writer, user schema.User, monthKey string, days []schema.AttendanceDay, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := monthKey
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return err
	}

	title := []any{fmt.Sprintf("%s (%s)", user.FullName, user.Email), monthKey}
	if err := f.SetSheetRow(sheet, "A1", &title); err != nil {
		return err
	}

	if err := writeHeaderAt(f, sheet, 2, "Date", "Weekday", "In", "Out", "Status"); err != nil {
		return err
	}
	for i, d := range days {
		weekday := ""
		if t, err := attendance.ParseDateKey(d.Date, loc); err == nil {
			weekday = t.Weekday().String()
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		values := []any{d.Date, weekday, clock(d.InTime, loc), clock(d.OutTime, loc), string(d.Status)}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 16); err != nil {
		return err
	}
	return write(f, w)
}

func writeHeader(f *excelize.File, sheet string, titles ...any) error {
	return writeHeaderAt(f, sheet, 1, titles...)
}

func writeHeaderAt(f *excelize.File, sheet string, row int, titles ...any) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(titles), row)
	if err := f.SetSheetRow(sheet, first, &titles); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func write(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc != nil {
		return t.In(loc).Format("15:04")
	}
	return t.Format("15:04")
}
