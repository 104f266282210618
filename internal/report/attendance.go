// Package report renders attendance sheets as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxSheetNameLength = 31

var attendanceColumns = []string{
	"User ID", "Name", "Response", "Responded At", "Comment", "Attendance", "Late Minutes",
}

// WriteAttendance writes sheet as an xlsx workbook to w. The first sheet is
// named after the rehearsal title; summary rows follow the attendee rows.
func WriteAttendance(w io.Writer, sheet application.AttendanceSheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sheetName(sheet.Rehearsal.Title)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	meta := [][]any{
		{"Rehearsal", sheet.Rehearsal.Title},
		{"Start", sheet.Rehearsal.Start.UTC().Format(time.RFC3339)},
		{"End", sheet.Rehearsal.End.UTC().Format(time.RFC3339)},
		{"Status", string(sheet.Rehearsal.Status)},
	}
	for _, values := range meta {
		if err := writeRow(f, name, row, values); err != nil {
			return err
		}
		row++
	}
	row++

	header := make([]any, len(attendanceColumns))
	for i, col := range attendanceColumns {
		header[i] = col
	}
	if err := writeRow(f, name, row, header); err != nil {
		return err
	}
	if err := boldRow(f, name, row, len(attendanceColumns)); err != nil {
		return err
	}
	row++

	counts := make(map[lifecycle.AttendanceStatus]int)
	for _, a := range sheet.Attendees {
		respondedAt := ""
		if a.ResponseDate != nil {
			respondedAt = a.ResponseDate.UTC().Format(time.RFC3339)
		}
		values := []any{
			a.UserID,
			sheet.DisplayNames[a.UserID],
			displayValue(string(a.Response)),
			respondedAt,
			a.Comment,
			displayValue(string(a.AttendanceStatus)),
			a.LateMinutes,
		}
		if err := writeRow(f, name, row, values); err != nil {
			return err
		}
		counts[a.AttendanceStatus]++
		row++
	}

	row++
	summary := [][]any{
		{"Attended", counts[lifecycle.AttendanceAttended]},
		{"Late", counts[lifecycle.AttendanceLate]},
		{"Absent", counts[lifecycle.AttendanceAbsent]},
		{"Unrecorded", counts[lifecycle.AttendanceUnset]},
	}
	for _, values := range summary {
		if err := writeRow(f, name, row, values); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(name, "A", "G", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func boldRow(f *excelize.File, sheet string, row, columns int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(columns, row)
	return f.SetCellStyle(sheet, start, end, style)
}

// sheetName trims title to Excel's limit and strips characters Excel rejects.
func sheetName(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == maxSheetNameLength {
			break
		}
	}
	if len(out) == 0 {
		return "Attendance"
	}
	return string(out)
}

func displayValue(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
