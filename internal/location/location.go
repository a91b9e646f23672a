// Package location enumerates the places the ABS publishes an all groups
// CPI series for.
package location

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLocation = errors.New("unknown location")

type Location string

const (
	Australia Location = "Australia"
	Sydney    Location = "Sydney"
	Melbourne Location = "Melbourne"
	Brisbane  Location = "Brisbane"
	Adelaide  Location = "Adelaide"
	Perth     Location = "Perth"
	Hobart    Location = "Hobart"
	Darwin    Location = "Darwin"
	Canberra  Location = "Canberra"
)

// All lists the national series first, then the eight capital cities.
var All = []Location{Australia, Sydney, Melbourne, Brisbane, Adelaide, Perth, Hobart, Darwin, Canberra}

func (l Location) String() string { return string(l) }

// Parse matches a location name case-insensitively. An empty string is
// Australia.
func Parse(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Australia, nil
	}
	for _, l := range All {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLocation, s)
}

// IndexColumn is the column title for the location's index numbers in the
// ABS 640101 workbook.
func (l Location) IndexColumn() string {
	return fmt.Sprintf("Index Numbers ;  All groups CPI ;  %s ;", l)
}

// ChangeColumn is the column title for the published year-on-year
// percentage change.
func (l Location) ChangeColumn() string {
	return fmt.Sprintf("Percentage Change from Corresponding Quarter of Previous Year ;  All groups CPI ;  %s ;", l)
}
