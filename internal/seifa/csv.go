package seifa

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lox/ausdex/internal/models"
)

// ReadCSV reads the flat suburb table: a Site_suburb column, a year column
// and any of the metric columns. "-" and empty cells are missing.
func ReadCSV(r io.Reader) ([]models.SeifaRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	suburbCol, yearCol := -1, -1
	metricCols := make(map[int]string)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case name == "site_suburb" || name == "suburb":
			suburbCol = i
		case name == "year":
			yearCol = i
		case Metric(name).Valid():
			metricCols[i] = name
		}
	}
	if suburbCol < 0 || yearCol < 0 {
		return nil, errors.New("read header: missing Site_suburb or year column")
	}

	var records []models.SeifaRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if suburbCol >= len(row) || yearCol >= len(row) {
			continue
		}

		suburb := normalizeName(row[suburbCol])
		if suburb == "" {
			continue
		}
		year, err := strconv.ParseFloat(strings.TrimSpace(row[yearCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: year %q: %w", line, row[yearCol], err)
		}

		rec := models.SeifaRecord{Suburb: suburb, Year: year}
		for col, name := range metricCols {
			if col >= len(row) {
				continue
			}
			v, err := parseScore(row[col])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s %q: %w", line, name, row[col], err)
			}
			rec.SetScore(name, v)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseScore(s string) (sql.NullFloat64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

// CSVSource reads the suburb table from a file on every load.
type CSVSource struct {
	Path string
}

func (c CSVSource) SeifaRecords(ctx context.Context) ([]models.SeifaRecord, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open seifa csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
