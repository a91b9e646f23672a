package abs

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/models"
)

var ErrLegacyFormat = errors.New("legacy .xls workbooks are not supported")

const (
	cpiSheet = "Data1"
	// Rows between the column titles and the first observation hold series
	// metadata (unit, frequency, series id and so on).
	cpiHeaderRows = 10
)

// ParseCPIWorkbook reads the all groups index numbers for every location
// from an ABS 640101 workbook.
func ParseCPIWorkbook(path string) ([]models.CPIObservation, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrLegacyFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return ReadCPIWorkbook(f)
}

// ReadCPIWorkbook is ParseCPIWorkbook over an xlsx stream.
func ReadCPIWorkbook(r io.Reader) ([]models.CPIObservation, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(cpiSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", cpiSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", cpiSheet)
	}

	columns := make(map[int]location.Location)
	for i, title := range rows[0] {
		title = strings.TrimSpace(title)
		for _, loc := range location.All {
			if title == strings.TrimSpace(loc.IndexColumn()) {
				columns[i] = loc
			}
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sheet %s has no all groups index columns", cpiSheet)
	}

	var obs []models.CPIObservation
	for r := cpiHeaderRows; r < len(rows); r++ {
		row := rows[r]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		date, err := cellDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		for col, loc := range columns {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			obs = append(obs, models.CPIObservation{
				Location:    string(loc),
				QuarterDate: date,
				Value:       v,
			})
		}
	}
	return obs, nil
}

// cellDate reads an Excel serial date, falling back to a date string.
func cellDate(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", cell, err)
		}
		return dates.Day(t), nil
	}
	t, err := dates.Parse(cell)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", cell, err)
	}
	return t, nil
}
