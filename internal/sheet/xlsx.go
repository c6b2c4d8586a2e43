package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"protodash/internal/metrics"
)

// ReadXLSX reads the first worksheet of a workbook using the cells' formatted
// text, so time-formatted durations arrive as "0:01:30". Scheduled cells whose
// text is not a DD/MM/YYYY HH:MM:SS timestamp are read from their stored value.
func ReadXLSX(r io.Reader) ([]metrics.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingColumn)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	return parseRows(rows, func(row, col int, name, text string) any {
		if name != ColScheduled {
			return text
		}
		if _, ok := metrics.ParseTimestamp(text); ok {
			return text
		}
		if t, ok := nativeTime(f, sheets[0], row, col, date1904); ok {
			return t
		}
		return text
	})
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// nativeTime reads the cell at the zero-based row and col as a date, either
// an ISO 8601 date cell or a numeric date serial.
func nativeTime(f *excelize.File, sheet string, row, col int, date1904 bool) (time.Time, bool) {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return time.Time{}, false
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return time.Time{}, false
	}
	raw = strings.TrimSpace(raw)

	switch typ {
	case excelize.CellTypeDate:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil || serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return t.Round(time.Second), true
	}
	return time.Time{}, false
}

func WriteXLSX(w io.Writer, ds metrics.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range Rows(ds) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
