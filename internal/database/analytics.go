package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fipetracker/server/internal/format"
	"fipetracker/server/internal/models"
)

const pricedVehicleColumns = `
	my.id AS model_year_id, b.brand_name, cm.model_name, my.year_description,
	cp.price, cp.fipe_code`

const pricedVehicleJoins = `
	FROM car_prices cp
	JOIN model_years my ON my.id = cp.model_year_id
	JOIN car_models cm ON cm.id = my.car_model_id
	JOIN brands b ON b.id = cm.brand_id`

// GetBrandStatistics summarises the prices of a brand in one reference month.
func (d *Database) GetBrandStatistics(ctx context.Context, month time.Time, brandName string) (*models.BrandStatistics, error) {
	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}

	var row struct {
		TotalModels int
		AvgPrice    float64
		MinPrice    float64
		MaxPrice    float64
	}
	err = d.db.WithContext(ctx).Raw(`
		SELECT COUNT(cp.id) AS total_models,
			COALESCE(AVG(cp.price), 0) AS avg_price,
			COALESCE(MIN(cp.price), 0) AS min_price,
			COALESCE(MAX(cp.price), 0) AS max_price`+pricedVehicleJoins+`
		WHERE b.brand_name = ? AND cp.reference_month_id = ?
	`, brandName, monthID).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics of brand %s: %w", brandName, err)
	}

	return &models.BrandStatistics{
		BrandName:   brandName,
		MonthDate:   models.FirstOfMonth(month).Format("2006-01-02"),
		TotalModels: row.TotalModels,
		AvgPrice:    row.AvgPrice,
		MinPrice:    row.MinPrice,
		MaxPrice:    row.MaxPrice,
		PriceRange:  row.MaxPrice - row.MinPrice,
	}, nil
}

// GetCheapestInMonth returns the lowest priced vehicles of a reference month.
func (d *Database) GetCheapestInMonth(ctx context.Context, month time.Time, limit int) ([]models.PricedVehicle, error) {
	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}

	vehicles := make([]models.PricedVehicle, 0)
	err = d.db.WithContext(ctx).Raw(`
		SELECT`+pricedVehicleColumns+pricedVehicleJoins+`
		WHERE cp.reference_month_id = ?
		ORDER BY cp.price ASC, my.id
		LIMIT ?
	`, monthID, limit).Scan(&vehicles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cheapest vehicles: %w", err)
	}
	return vehicles, nil
}

// GetPriceDistribution buckets the prices of a reference month into
// histogram bins of bucketSize, ordered by bin.
func (d *Database) GetPriceDistribution(ctx context.Context, month time.Time, bucketSize float64) ([]models.PriceBucket, error) {
	if bucketSize <= 0 {
		return nil, fmt.Errorf("%w: bucket size must be positive", models.ErrInvalidRequest)
	}
	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}

	var prices []decimal.Decimal
	err = d.db.WithContext(ctx).
		Model(&models.CarPrice{}).
		Where("reference_month_id = ?", monthID).
		Pluck("price", &prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}

	size := decimal.NewFromFloat(bucketSize)
	counts := make(map[string]int)
	bounds := make(map[string]decimal.Decimal)
	for _, p := range prices {
		low := p.Div(size).Floor().Mul(size)
		key := low.String()
		counts[key]++
		bounds[key] = low
	}

	buckets := make([]models.PriceBucket, 0, len(counts))
	for key, count := range counts {
		low := bounds[key]
		high := low.Add(size)
		buckets = append(buckets, models.PriceBucket{
			PriceRange: format.PriceBRL(low) + " - " + format.PriceBRL(high),
			PriceMin:   low.InexactFloat64(),
			PriceMax:   high.InexactFloat64(),
			Count:      count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].PriceMin < buckets[j].PriceMin })
	return buckets, nil
}

// GetFuelTypeComparison averages prices per fuel type, taken as the last
// word of the year description ("2024 Gasolina" is Gasolina).
func (d *Database) GetFuelTypeComparison(ctx context.Context, month time.Time) ([]models.FuelTypeStat, error) {
	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		YearDescription string
		AvgPrice        float64
		Count           int
	}
	err = d.db.WithContext(ctx).Raw(`
		SELECT my.year_description, AVG(cp.price) AS avg_price, COUNT(cp.id) AS count
		FROM car_prices cp
		JOIN model_years my ON my.id = cp.model_year_id
		WHERE cp.reference_month_id = ?
		GROUP BY my.year_description
	`, monthID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel types: %w", err)
	}

	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		fuel := FuelType(r.YearDescription)
		totals[fuel] += r.AvgPrice * float64(r.Count)
		counts[fuel] += r.Count
	}

	out := make([]models.FuelTypeStat, 0, len(counts))
	for fuel, count := range counts {
		out = append(out, models.FuelTypeStat{
			FuelType: fuel,
			AvgPrice: totals[fuel] / float64(count),
			Count:    count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuelType < out[j].FuelType })
	return out, nil
}

// FuelType extracts the fuel from a year description, or "Unknown" when
// the description is a single word.
func FuelType(yearDescription string) string {
	parts := strings.Fields(yearDescription)
	if len(parts) < 2 {
		return "Unknown"
	}
	return parts[len(parts)-1]
}

// GetMarketLeaders ranks brands by the number of distinct models priced in a month.
func (d *Database) GetMarketLeaders(ctx context.Context, month time.Time, limit int) ([]models.MarketLeader, error) {
	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}

	leaders := make([]models.MarketLeader, 0)
	err = d.db.WithContext(ctx).Raw(`
		SELECT b.brand_name, COUNT(DISTINCT cm.id) AS model_count, AVG(cp.price) AS avg_price`+pricedVehicleJoins+`
		WHERE cp.reference_month_id = ?
		GROUP BY b.id, b.brand_name
		ORDER BY model_count DESC, b.brand_name
		LIMIT ?
	`, monthID, limit).Scan(&leaders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query market leaders: %w", err)
	}
	return leaders, nil
}

// SearchModels matches term against model and brand names. When month is
// set only vehicles priced in that month are returned, with their price.
func (d *Database) SearchModels(ctx context.Context, term string, month time.Time, limit int) ([]models.SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: empty search term", models.ErrInvalidRequest)
	}
	pattern := "%" + strings.ToLower(term) + "%"

	results := make([]models.SearchResult, 0)
	if month.IsZero() {
		err := d.db.WithContext(ctx).Raw(`
			SELECT my.id AS model_year_id, b.brand_name, cm.model_name, my.year_description
			FROM model_years my
			JOIN car_models cm ON cm.id = my.car_model_id
			JOIN brands b ON b.id = cm.brand_id
			WHERE LOWER(cm.model_name) LIKE ? OR LOWER(b.brand_name) LIKE ?
			ORDER BY b.brand_name, cm.model_name, my.year_description DESC
			LIMIT ?
		`, pattern, pattern, limit).Scan(&results).Error
		if err != nil {
			return nil, fmt.Errorf("failed to search models: %w", err)
		}
		return results, nil
	}

	monthID, err := d.monthID(ctx, month)
	if err != nil {
		return nil, err
	}
	err = d.db.WithContext(ctx).Raw(`
		SELECT`+pricedVehicleColumns+pricedVehicleJoins+`
		WHERE cp.reference_month_id = ?
			AND (LOWER(cm.model_name) LIKE ? OR LOWER(b.brand_name) LIKE ?)
		ORDER BY b.brand_name, cm.model_name, my.year_description DESC
		LIMIT ?
	`, monthID, pattern, pattern, limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search models: %w", err)
	}
	return results, nil
}
