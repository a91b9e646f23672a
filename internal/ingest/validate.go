package ingest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/models"
)

const (
	FlagUnknownLocation  = "unknown_location"
	FlagValueNotPositive = "value_not_positive"
	FlagDateOutOfRange   = "date_out_of_range"
	FlagEmptySuburb      = "empty_suburb"
	FlagYearOutOfRange   = "year_out_of_range"
	FlagScoreNegative    = "score_negative"
	FlagNoScores         = "no_scores"
)

// The first CPI quarter the ABS publishes.
var firstCPIQuarter = time.Date(1948, time.September, 1, 0, 0, 0, 0, time.UTC)

// ValidateCPIObservation returns quality flags for one parsed observation.
// Flagged rows are not stored.
func ValidateCPIObservation(obs models.CPIObservation, now time.Time) []string {
	var flags []string

	if _, err := location.Parse(obs.Location); err != nil || obs.Location == "" {
		flags = append(flags, FlagUnknownLocation)
	}
	if math.IsNaN(obs.Value) || obs.Value <= 0 {
		flags = append(flags, FlagValueNotPositive)
	}
	if obs.QuarterDate.Before(firstCPIQuarter) || obs.QuarterDate.After(now) {
		flags = append(flags, FlagDateOutOfRange)
	}

	return flags
}

// ValidateSeifaRecord returns quality flags for one suburb row.
func ValidateSeifaRecord(rec models.SeifaRecord) []string {
	var flags []string

	if rec.Suburb == "" {
		flags = append(flags, FlagEmptySuburb)
	}
	if math.IsNaN(rec.Year) || rec.Year < 1900 || rec.Year > 2100 {
		flags = append(flags, FlagYearOutOfRange)
	}

	valid := 0
	for _, col := range models.SeifaColumns {
		v, _ := rec.Score(col)
		if !v.Valid {
			continue
		}
		valid++
		if v.Float64 < 0 {
			flags = append(flags, FlagScoreNegative)
			break
		}
	}
	if valid == 0 {
		flags = append(flags, FlagNoScores)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
