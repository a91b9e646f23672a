// Package abs locates, downloads and parses Australian Bureau of Statistics
// CPI releases.
package abs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidQuarter = errors.New("invalid quarter")

// CPIFileID is the ABS identifier of the all groups CPI workbook.
const CPIFileID = "640101"

const DefaultBaseURL = "https://www.abs.gov.au/statistics/economy/price-indexes-and-inflation/consumer-price-index-australia"

// Quarter is a release quarter token.
type Quarter string

const (
	Mar Quarter = "mar"
	Jun Quarter = "jun"
	Sep Quarter = "sep"
	Dec Quarter = "dec"
)

var Quarters = []Quarter{Mar, Jun, Sep, Dec}

// ParseQuarter reads the first three letters of s case-insensitively, so
// "June" and "JUN" are both Jun.
func ParseQuarter(s string) (Quarter, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	if len(token) > 3 {
		token = token[:3]
	}
	for _, q := range Quarters {
		if Quarter(token) == q {
			return q, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of mar, jun, sep, dec)", ErrInvalidQuarter, s)
}

// Title is the token with an initial capital, e.g. "Jun".
func (q Quarter) Title() string {
	if q == "" {
		return ""
	}
	return strings.ToUpper(string(q[:1])) + string(q[1:])
}

// Release identifies one quarterly publication of an ABS file.
type Release struct {
	ID      string
	Quarter Quarter
	Year    int
}

func NewRelease(id, quarter string, year int) (Release, error) {
	q, err := ParseQuarter(quarter)
	if err != nil {
		return Release{}, err
	}
	return Release{ID: id, Quarter: q, Year: year}, nil
}

func (r Release) String() string {
	return fmt.Sprintf("%s %s %d", r.ID, r.Quarter.Title(), r.Year)
}

// Extension is xlsx from the December 2021 release onwards, xls before.
func (r Release) Extension() string {
	if r.Year > 2021 || (r.Year == 2021 && r.Quarter == Dec) {
		return "xlsx"
	}
	return "xls"
}

// Dir is the release's directory on the ABS site. The naming changed to
// "{q}-quarter-{year}" part way through 2022.
func (r Release) Dir() string {
	if r.Year > 2022 || (r.Year == 2022 && (r.Quarter == Jun || r.Quarter == Dec)) {
		return fmt.Sprintf("%s-quarter-%d", r.Quarter, r.Year)
	}
	return fmt.Sprintf("%s-%d", r.Quarter, r.Year)
}

func (r Release) URL(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return fmt.Sprintf("%s/%s/%s.%s", strings.TrimRight(baseURL, "/"), r.Dir(), r.ID, r.Extension())
}

// FileName is the local cache name, e.g. "640101-jun-2021.xls".
func (r Release) FileName() string {
	return fmt.Sprintf("%s-%s-%d.%s", r.ID, r.Quarter, r.Year, r.Extension())
}

// QuarterBefore returns the most recent quarter that has ended before t's
// month. January and February roll back to December of the previous year.
func QuarterBefore(t time.Time) (Quarter, int) {
	year := t.Year()
	idx := (int(t.Month()) - 3) / 3
	if int(t.Month()) < 3 {
		idx = 3
		year--
	}
	return Quarters[idx], year
}
