package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layouts tried before falling back to the free-form parser. Month-only
// forms ("March 1991") resolve to the first of the month.
var layouts = []string{
	"2006-01-02",
	"January 2006",
	"Jan 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// Parse reads a free-form calendar date string. Day/month ambiguity in
// numeric forms such as "01-02-2019" follows dateparse, which reads the
// month first.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnparseable)
	}

	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil {
			return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparseable, s, err)
	}
	return Day(t), nil
}

// Guess classifies a user-supplied date argument: a plain integer is a
// year, a number with a fraction is a decimal year, and anything else is a
// date string. An empty argument is None.
func Guess(s string) DateLike {
	s = strings.TrimSpace(s)
	if s == "" {
		return None()
	}
	if !strings.HasPrefix(s, "0") {
		if y, err := strconv.Atoi(s); err == nil {
			return Year(y)
		}
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Decimal(f)
		}
	}
	return String(s)
}
