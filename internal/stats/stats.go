// Package stats derives depreciation metrics from a price series.
//
// Every function is pure. Metrics that cannot be computed from the given
// points report ErrInsufficientData; Compute folds those into nil fields.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fipetracker/server/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Statistics is the display summary of one price series.
type Statistics struct {
	Points              int              `json:"points"`
	Current             *decimal.Decimal `json:"current"`
	First               *decimal.Decimal `json:"first"`
	Min                 *decimal.Decimal `json:"min"`
	Max                 *decimal.Decimal `json:"max"`
	TotalChangePct      *float64         `json:"total_change_pct"`
	MonthsElapsed       int              `json:"months_elapsed"`
	YearsElapsed        float64          `json:"years_elapsed"`
	AnnualizedPct       *float64         `json:"annualized_pct"`
	MonthlyPct          *float64         `json:"monthly_pct"`
	RealDepreciationPct *float64         `json:"real_depreciation_pct"`
	Yearly              []YearlyChange   `json:"yearly"`
}

// YearlyChange is the change within one calendar year.
type YearlyChange struct {
	Year      int     `json:"year"`
	Points    int     `json:"points"`
	ChangePct float64 `json:"change_pct"`
}

// Compute builds the full Statistics for a series. inflation is the rate over the
// same period as a fraction; nil means the rate is unknown.
func Compute(series []models.PricePoint, inflation *float64) Statistics {
	s := Statistics{Points: len(series), Yearly: []YearlyChange{}}
	if len(series) == 0 {
		return s
	}

	first := series[0].Price
	current := series[len(series)-1].Price
	lo, hi := MinMax(series)
	s.First, s.Current, s.Min, s.Max = &first, &current, &lo, &hi

	s.MonthsElapsed = MonthsElapsed(series)
	s.YearsElapsed = float64(s.MonthsElapsed) / 12

	if total, err := TotalChangePct(series); err == nil {
		s.TotalChangePct = &total
		annual := Annualized(total, s.MonthsElapsed)
		s.AnnualizedPct = &annual
		if realPct, err := RealDepreciationPct(total/100, inflation); err == nil {
			s.RealDepreciationPct = &realPct
		}
	}
	if monthly, err := MonthlyChangePct(series); err == nil {
		s.MonthlyPct = &monthly
	}
	s.Yearly = YearlyBreakdown(series)
	return s
}

// MinMax returns the lowest and highest price. It must not be called on an empty series.
func MinMax(series []models.PricePoint) (decimal.Decimal, decimal.Decimal) {
	lo, hi := series[0].Price, series[0].Price
	for _, p := range series[1:] {
		if p.Price.LessThan(lo) {
			lo = p.Price
		}
		if p.Price.GreaterThan(hi) {
			hi = p.Price
		}
	}
	return lo, hi
}

// changePct is (to - from) / from * 100.
func changePct(from, to decimal.Decimal) (float64, error) {
	if from.IsZero() {
		return 0, fmt.Errorf("%w: zero baseline price", models.ErrInsufficientData)
	}
	return to.Sub(from).Div(from).Mul(hundred).InexactFloat64(), nil
}

// TotalChangePct is the change from the first to the last point.
func TotalChangePct(series []models.PricePoint) (float64, error) {
	if len(series) == 0 {
		return 0, fmt.Errorf("%w: empty series", models.ErrInsufficientData)
	}
	return changePct(series[0].Price, series[len(series)-1].Price)
}

// MonthlyChangePct is the change between the last two points.
func MonthlyChangePct(series []models.PricePoint) (float64, error) {
	if len(series) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 points", models.ErrInsufficientData)
	}
	return changePct(series[len(series)-2].Price, series[len(series)-1].Price)
}

// MonthsElapsed is the calendar-month distance between the first and last point,
// regardless of gaps in between.
func MonthsElapsed(series []models.PricePoint) int {
	if len(series) == 0 {
		return 0
	}
	return monthsBetween(series[0].Date, series[len(series)-1].Date)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// Annualized spreads totalPct over the elapsed years. A zero-length period has
// nothing to annualize, so the total is returned as is.
func Annualized(totalPct float64, monthsElapsed int) float64 {
	if monthsElapsed <= 0 {
		return totalPct
	}
	return totalPct / (float64(monthsElapsed) / 12)
}

// RealDepreciationPct deflates a nominal rate by inflation, both as fractions:
// ((1+n)/(1+i) - 1) * 100. A nil inflation rate yields ErrInsufficientData.
func RealDepreciationPct(nominal float64, inflation *float64) (float64, error) {
	if inflation == nil {
		return 0, fmt.Errorf("%w: inflation rate unavailable", models.ErrInsufficientData)
	}
	i := decimal.NewFromFloat(*inflation)
	denom := decimal.NewFromInt(1).Add(i)
	if denom.IsZero() {
		return 0, fmt.Errorf("%w: inflation of -100%%", models.ErrInsufficientData)
	}
	n := decimal.NewFromInt(1).Add(decimal.NewFromFloat(nominal))
	return n.Div(denom).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64(), nil
}

// Base100Index rescales prices so the first one is exactly 100.
func Base100Index(prices []decimal.Decimal) ([]float64, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: empty series", models.ErrInsufficientData)
	}
	if prices[0].IsZero() {
		return nil, fmt.Errorf("%w: zero baseline price", models.ErrInsufficientData)
	}
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.Div(prices[0]).Mul(hundred).InexactFloat64()
	}
	out[0] = 100
	return out, nil
}

// Prices extracts the price column of a series.
func Prices(series []models.PricePoint) []decimal.Decimal {
	out := make([]decimal.Decimal, len(series))
	for i, p := range series {
		out[i] = p.Price
	}
	return out
}

// YearlyBreakdown computes the change within each calendar year that has at least
// two points. Years with fewer points, or a zero first price, are left out.
func YearlyBreakdown(series []models.PricePoint) []YearlyChange {
	byYear := make(map[int][]models.PricePoint)
	for _, p := range series {
		byYear[p.Date.Year()] = append(byYear[p.Date.Year()], p)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]YearlyChange, 0, len(years))
	for _, y := range years {
		points := byYear[y]
		if len(points) < 2 {
			continue
		}
		pct, err := changePct(points[0].Price, points[len(points)-1].Price)
		if err != nil {
			continue
		}
		out = append(out, YearlyChange{Year: y, Points: len(points), ChangePct: pct})
	}
	return out
}
