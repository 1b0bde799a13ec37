// Package export renders attendance rosters into xlsx workbooks for
// the admin export flow.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

var rosterHeader = []string{"Name", "Handle", "Tier", "Status", "Reason"}

// AttendanceSheets lays one event's roster out as three sheets:
// attending, absent, unindicated.
func AttendanceSheets(attending, absent, unindicated []db.AttendanceRow) []SheetSpec {
	return []SheetSpec{
		{Title: "Attending", Header: rosterHeader, Rows: rosterRows(attending)},
		{Title: "Absent", Header: rosterHeader, Rows: rosterRows(absent)},
		{Title: "Unindicated", Header: rosterHeader, Rows: rosterRows(unindicated)},
	}
}

func rosterRows(rows []db.AttendanceRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		handle := "privated"
		if r.Handle != "" {
			handle = "@" + r.Handle
		}
		out = append(out, []string{
			r.Name,
			handle,
			strconv.Itoa(r.Tier),
			r.Status.Pretty(),
			r.Reason,
		})
	}
	return out
}

type AttendanceWorkbook struct {
	File *excelize.File
}

// NewAttendanceWorkbook builds a workbook with a bold, filterable
// header row and heuristic column widths per sheet.
func NewAttendanceWorkbook(sheets []SheetSpec) (*AttendanceWorkbook, error) {
	f := excelize.NewFile()

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}
		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		end := colName(len(s.Header)) + "1"
		_ = f.SetCellStyle(name, "A1", end, bold)
		_ = f.AutoFilter(name, "A1:"+end, nil)

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		// Width heuristic from the header and the first rows.
		for c := 1; c <= len(s.Header); c++ {
			widest := len(s.Header[c-1])
			for r := 0; r < min(50, len(s.Rows)); r++ {
				if l := len(s.Rows[r][c-1]); l > widest {
					widest = l
				}
			}
			w := float64(widest) * 0.9
			if w < 12 {
				w = 12
			}
			if w > 40 {
				w = 40
			}
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return &AttendanceWorkbook{File: f}, nil
}

// Bytes serialises the workbook for a document upload.
func (w *AttendanceWorkbook) Bytes() ([]byte, error) {
	buf, err := w.File.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

// BuildAttendanceFilename names the export after the event.
func BuildAttendanceFilename(ev models.Event) string {
	base := fmt.Sprintf("Attendance — %s — %s.xlsx", ev.EventType, ev.PrettyDate())
	base = strings.Join(strings.Fields(base), " ")
	return invalidFileRe.ReplaceAllString(base, "_")
}

func colName(n int) string {
	// 1 -> A; 27 -> AA
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
