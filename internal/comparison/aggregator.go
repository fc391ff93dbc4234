// Package comparison fetches the price series of several vehicles over a
// shared date range and merges them into one response.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fipetracker/server/config"
	"fipetracker/server/internal/models"
	"fipetracker/server/internal/stats"
)

const tracerName = "fipetracker/comparison"

// SeriesSource is the read side of the price store. *database.Database
// implements it.
type SeriesSource interface {
	GetPriceSeries(ctx context.Context, modelYearID uint, r models.DateRange) ([]models.PricePoint, error)
	GetVehicleInfo(ctx context.Context, modelYearID uint) (*models.VehicleInfo, error)
}

// InflationProvider returns the accumulated inflation between two months
// as a fraction.
type InflationProvider interface {
	Rate(ctx context.Context, start, end time.Time) (float64, error)
}

// VehicleSeries is the price history of one requested vehicle.
type VehicleSeries struct {
	ModelYearID uint                `json:"model_year_id"`
	Vehicle     *models.VehicleInfo `json:"vehicle"`
	Series      []models.PricePoint `json:"series"`
}

// Aggregator runs the per-vehicle fetches of a comparison with bounded
// parallelism.
type Aggregator struct {
	source       SeriesSource
	inflation    InflationProvider
	workers      int
	fetchTimeout time.Duration
	logger       *logrus.Logger
}

// NewAggregator creates an Aggregator. inflation may be nil, in which case
// real depreciation is never computed.
func NewAggregator(source SeriesSource, inflation InflationProvider, workers int, fetchTimeout time.Duration, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if workers <= 0 {
		workers = config.MaxComparedVehicles
	}
	return &Aggregator{
		source:       source,
		inflation:    inflation,
		workers:      workers,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// ValidateIDs checks a comparison request: between one and
// MaxComparedVehicles distinct, non-zero ids.
func ValidateIDs(ids []uint) error {
	if len(ids) == 0 || len(ids) > config.MaxComparedVehicles {
		return fmt.Errorf("%w: between 1 and %d vehicles required, got %d",
			models.ErrInvalidRequest, config.MaxComparedVehicles, len(ids))
	}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if id == 0 {
			return fmt.Errorf("%w: vehicle id must be positive", models.ErrInvalidRequest)
		}
		if seen[id] {
			return fmt.Errorf("%w: vehicle %d requested twice", models.ErrInvalidRequest, id)
		}
		seen[id] = true
	}
	return nil
}

// FetchSeries returns one entry per id in input order. The batch fails as a
// whole on the first vehicle that cannot be fetched; the error is a
// *models.VehicleError naming that vehicle and no partial data is returned.
func (a *Aggregator) FetchSeries(ctx context.Context, ids []uint, r models.DateRange) ([]VehicleSeries, error) {
	if err := ValidateIDs(ids); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	out := parMap(ids, a.workers, func(id uint) VehicleSeries {
		vs, err := a.fetchOne(ctx, id, r)
		if err != nil {
			once.Do(func() {
				firstErr = &models.VehicleError{ModelYearID: id, Err: err}
				cancel()
			})
		}
		return vs
	})

	if firstErr != nil {
		a.logger.WithError(firstErr).WithField("vehicles", ids).Warn("Comparison failed")
		return nil, firstErr
	}
	return out, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, id uint, r models.DateRange) (VehicleSeries, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "comparison.fetch")
	defer span.End()
	span.SetAttributes(attribute.Int64("model_year_id", int64(id)))

	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
	}

	vs, err := a.fetch(ctx, id, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return vs, err
}

func (a *Aggregator) fetch(ctx context.Context, id uint, r models.DateRange) (VehicleSeries, error) {
	info, err := a.source.GetVehicleInfo(ctx, id)
	if err != nil {
		return VehicleSeries{}, err
	}
	series, err := a.source.GetPriceSeries(ctx, id, r)
	if err != nil {
		return VehicleSeries{}, err
	}
	if err := ctx.Err(); err != nil {
		return VehicleSeries{}, err
	}
	return VehicleSeries{ModelYearID: id, Vehicle: info, Series: series}, nil
}

// InflationInfo reports whether an inflation rate backs the real
// depreciation figures of a response.
type InflationInfo struct {
	Available bool     `json:"available"`
	RatePct   *float64 `json:"rate_pct"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
}

// Entry is one vehicle of a comparison with its derived metrics. Base100 is
// only filled for the indexed view.
type Entry struct {
	VehicleSeries
	Statistics stats.Statistics `json:"statistics"`
	Base100    []float64        `json:"base100,omitempty"`
}

// Result is the response of Compare.
type Result struct {
	Vehicles  []Entry       `json:"vehicles"`
	Inflation InflationInfo `json:"inflation"`
}

// Request is a comparison over a shared date range.
type Request struct {
	ModelYearIDs []uint
	Range        models.DateRange
	Indexed      bool
}

// Compare fetches every vehicle and derives its statistics. Inflation is
// looked up per series span; an unavailable provider leaves the real
// depreciation figures null without failing the comparison.
func (a *Aggregator) Compare(ctx context.Context, req Request) (*Result, error) {
	fetched, err := a.FetchSeries(ctx, req.ModelYearIDs, req.Range)
	if err != nil {
		return nil, err
	}

	result := &Result{Vehicles: make([]Entry, 0, len(fetched))}
	var spanStart, spanEnd time.Time
	for _, vs := range fetched {
		entry := a.entry(ctx, vs, req.Indexed)
		result.Vehicles = append(result.Vehicles, entry)

		if len(vs.Series) == 0 {
			continue
		}
		first, last := vs.Series[0].Date, vs.Series[len(vs.Series)-1].Date
		if spanStart.IsZero() || first.Before(spanStart) {
			spanStart = first
		}
		if last.After(spanEnd) {
			spanEnd = last
		}
	}

	result.Inflation = a.inflationInfo(ctx, spanStart, spanEnd)
	return result, nil
}

func (a *Aggregator) entry(ctx context.Context, vs VehicleSeries, indexed bool) Entry {
	var rate *float64
	if n := len(vs.Series); n > 0 {
		rate = a.rate(ctx, vs.Series[0].Date, vs.Series[n-1].Date)
	}

	entry := Entry{VehicleSeries: vs, Statistics: stats.Compute(vs.Series, rate)}
	if indexed {
		if base, err := stats.Base100Index(stats.Prices(vs.Series)); err == nil {
			entry.Base100 = base
		}
	}
	return entry
}

// rate returns nil when no provider is configured or it fails.
func (a *Aggregator) rate(ctx context.Context, start, end time.Time) *float64 {
	if a.inflation == nil {
		return nil
	}
	r, err := a.inflation.Rate(ctx, start, end)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"start": start.Format("2006-01"),
				"end":   end.Format("2006-01"),
			}).Warn("Inflation rate unavailable")
		}
		return nil
	}
	return &r
}

func (a *Aggregator) inflationInfo(ctx context.Context, start, end time.Time) InflationInfo {
	if start.IsZero() {
		return InflationInfo{}
	}
	info := InflationInfo{Start: start.Format("2006-01-02"), End: end.Format("2006-01-02")}
	if r := a.rate(ctx, start, end); r != nil {
		pct := *r * 100
		info.Available = true
		info.RatePct = &pct
	}
	return info
}

// parMap applies f to each item with at most workers goroutines,
// preserving input order.
func parMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(v)
		}(i, v)
	}
	wg.Wait()
	return out
}
