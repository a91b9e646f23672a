package models

import (
	"database/sql"
	"time"
)

type CPIObservation struct {
	Location    string // "Australia" or a capital city
	QuarterDate time.Time
	Value       float64
}

// SeifaRecord is one row of the assembled historical suburb table.
type SeifaRecord struct {
	Suburb string // canonical uppercase key, "{SUBURB} - {LGA}" for double names
	Year   float64
	IER    sql.NullFloat64
	IRSD   sql.NullFloat64
	IEO    sql.NullFloat64
	IRSAD  sql.NullFloat64
	RIRSA  sql.NullFloat64
	UIRSA  sql.NullFloat64
}

// SeifaColumns lists the metric columns in table order.
var SeifaColumns = []string{"ier_score", "irsd_score", "ieo_score", "irsad_score", "rirsa_score", "uirsa_score"}

// Score returns the named metric column. ok is false for an unknown name.
func (r SeifaRecord) Score(name string) (v sql.NullFloat64, ok bool) {
	if p := r.scorePtr(name); p != nil {
		return *p, true
	}
	return sql.NullFloat64{}, false
}

// SetScore sets the named metric column, reporting whether the name is known.
func (r *SeifaRecord) SetScore(name string, v sql.NullFloat64) bool {
	p := r.scorePtr(name)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (r *SeifaRecord) scorePtr(name string) *sql.NullFloat64 {
	switch name {
	case "ier_score":
		return &r.IER
	case "irsd_score":
		return &r.IRSD
	case "ieo_score":
		return &r.IEO
	case "irsad_score":
		return &r.IRSAD
	case "rirsa_score":
		return &r.RIRSA
	case "uirsa_score":
		return &r.UIRSA
	}
	return nil
}

// SourceFile describes an archived download.
type SourceFile struct {
	ID          int64
	FetchedAt   time.Time
	Source      string // "abs"
	Name        string // e.g. "640101-jun-2021.xls"
	URL         string
	SizeBytes   int64
	PayloadHash string
}
