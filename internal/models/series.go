package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PricePoint is one month of a price series.
type PricePoint struct {
	Date           time.Time       `json:"date"`
	Price          decimal.Decimal `json:"price"`
	Label          string          `json:"label,omitempty"`
	FormattedPrice string          `json:"formatted_price,omitempty"`
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	type point PricePoint
	return json.Marshal(struct {
		point
		Date string `json:"date"`
	}{point: point(p), Date: p.Date.Format(dateLayout)})
}

// DateRange is an inclusive month range. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate reports ErrInvalidRange when both bounds are set and Start is after End.
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	return nil
}

// FirstOfMonth truncates t to the first day of its month in UTC.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth accepts "YYYY-MM" or "YYYY-MM-DD" and returns the first day of that month.
// An empty string yields the zero time.
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{dateLayout, "2006-01", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return FirstOfMonth(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidRequest, s)
}

// ParseRange parses both bounds and validates their order.
func ParseRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if r.Start, err = ParseMonth(start); err != nil {
		return DateRange{}, err
	}
	if r.End, err = ParseMonth(end); err != nil {
		return DateRange{}, err
	}
	return r, r.Validate()
}
