package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

func TestWriteAttendance(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.March, 4, 18, 0, 0, 0, time.UTC)
	answered := start.Add(-24 * time.Hour)
	sheet := application.AttendanceSheet{
		Rehearsal: application.Rehearsal{
			ID:     "r1",
			Title:  "Gig prep: set 1/2",
			Start:  start,
			End:    start.Add(2 * time.Hour),
			Status: lifecycle.StatusCompleted,
		},
		Attendees: []lifecycle.Attendee{
			{UserID: "alice", Response: lifecycle.ResponseYes, ResponseDate: &answered, AttendanceStatus: lifecycle.AttendanceAttended},
			{UserID: "bob", Response: lifecycle.ResponseMaybe, AttendanceStatus: lifecycle.AttendanceLate, LateMinutes: 10, Comment: "traffic"},
			{UserID: "carol"},
		},
		DisplayNames: map[string]string{"alice": "Alice", "bob": "Bob"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAttendance(&buf, sheet))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	sheets := f.GetSheetList()
	require.Equal(t, []string{"Gig prep set 12"}, sheets)

	row := func(n int) []string {
		t.Helper()
		out := make([]string, 0, len(attendanceColumns))
		for col := 1; col <= len(attendanceColumns); col++ {
			cell, err := excelize.CoordinatesToCellName(col, n)
			require.NoError(t, err)
			v, err := f.GetCellValue(sheets[0], cell)
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}

	assert.Equal(t, []string{"Rehearsal", "Gig prep: set 1/2", "", "", "", "", ""}, row(1))
	assert.Equal(t, "completed", row(4)[1])
	assert.Equal(t, attendanceColumns, row(6))
	assert.Equal(t, []string{"alice", "Alice", "yes", answered.Format(time.RFC3339), "", "attended", "0"}, row(7))
	assert.Equal(t, []string{"bob", "Bob", "maybe", "", "traffic", "late", "10"}, row(8))
	assert.Equal(t, []string{"carol", "", "-", "", "", "-", "0"}, row(9))
	assert.Equal(t, []string{"Attended", "1"}, row(11)[:2])
	assert.Equal(t, []string{"Late", "1"}, row(12)[:2])
	assert.Equal(t, []string{"Unrecorded", "1"}, row(14)[:2])
}

func TestSheetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Attendance", sheetName("[]"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), maxSheetNameLength)
}
