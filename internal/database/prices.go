package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fipetracker/server/internal/format"
	"fipetracker/server/internal/models"
)

type priceRow struct {
	Date  time.Time
	Price decimal.Decimal
}

// GetPriceSeries returns the monthly prices of one model year in ascending
// month order, restricted to the inclusive range r. Months without a price
// are absent from the result. An unknown id is ErrNotFound; a known id with
// no prices in range yields an empty series.
func (d *Database) GetPriceSeries(ctx context.Context, modelYearID uint, r models.DateRange) ([]models.PricePoint, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := d.ensureExists(ctx, &models.ModelYear{}, "model year", modelYearID); err != nil {
		return nil, err
	}

	query := d.db.WithContext(ctx).
		Table("car_prices AS cp").
		Select("rm.month_date AS date, cp.price AS price").
		Joins("JOIN reference_months AS rm ON rm.id = cp.reference_month_id").
		Where("cp.model_year_id = ?", modelYearID)
	if !r.Start.IsZero() {
		query = query.Where("date(rm.month_date) >= ?", r.Start.Format("2006-01-02"))
	}
	if !r.End.IsZero() {
		query = query.Where("date(rm.month_date) <= ?", r.End.Format("2006-01-02"))
	}

	var rows []priceRow
	if err := query.Order("rm.month_date").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query prices of model year %d: %w", modelYearID, err)
	}

	series := make([]models.PricePoint, 0, len(rows))
	for _, row := range rows {
		date := models.FirstOfMonth(row.Date.UTC())
		series = append(series, models.PricePoint{
			Date:           date,
			Price:          row.Price,
			Label:          format.MonthPT(date),
			FormattedPrice: format.PriceBRL(row.Price),
		})
	}
	return series, nil
}

// GetVehicleInfo resolves a model year to its brand and model names.
func (d *Database) GetVehicleInfo(ctx context.Context, modelYearID uint) (*models.VehicleInfo, error) {
	var info models.VehicleInfo
	res := d.db.WithContext(ctx).
		Table("model_years AS my").
		Select(`my.id AS model_year_id, b.id AS brand_id, b.brand_name, cm.id AS model_id,
			cm.model_name, my.year_description, my.fipe_code`).
		Joins("JOIN car_models AS cm ON cm.id = my.car_model_id").
		Joins("JOIN brands AS b ON b.id = cm.brand_id").
		Where("my.id = ?", modelYearID).
		Limit(1).
		Scan(&info)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to query model year %d: %w", modelYearID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: model year %d", models.ErrNotFound, modelYearID)
	}
	return &info, nil
}

// LookupModelYear finds a model year by its exact catalogue names.
func (d *Database) LookupModelYear(ctx context.Context, brandName, modelName, yearDescription string) (uint, error) {
	var ids []uint
	err := d.db.WithContext(ctx).
		Table("model_years AS my").
		Select("my.id").
		Joins("JOIN car_models AS cm ON cm.id = my.car_model_id").
		Joins("JOIN brands AS b ON b.id = cm.brand_id").
		Where("b.brand_name = ? AND cm.model_name = ? AND my.year_description = ?",
			brandName, modelName, yearDescription).
		Order("my.id").
		Limit(1).
		Pluck("my.id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s %s %s: %w", brandName, modelName, yearDescription, err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: %s / %s / %s", models.ErrNotFound, brandName, modelName, yearDescription)
	}
	return ids[0], nil
}

// OptionRows returns the (model, model year) pairs of a brand. With
// latestOnly set, only model years priced in the most recent reference
// month are returned, along with that month. The rows are ordered by model
// name, then newest year description first.
func (d *Database) OptionRows(ctx context.Context, brandID uint, latestOnly bool) ([]models.OptionRow, *models.ReferenceMonth, error) {
	if err := d.ensureExists(ctx, &models.Brand{}, "brand", brandID); err != nil {
		return nil, nil, err
	}

	query := d.db.WithContext(ctx).
		Table("car_models AS cm").
		Select("cm.id AS model_id, cm.model_name, my.id AS model_year_id, my.year_description").
		Joins("JOIN model_years AS my ON my.car_model_id = cm.id")

	var latest *models.ReferenceMonth
	if latestOnly {
		month, err := d.LatestMonth(ctx)
		if errors.Is(err, models.ErrNotFound) {
			return []models.OptionRow{}, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		latest = month
		query = query.Joins("JOIN car_prices AS cp ON cp.model_year_id = my.id AND cp.reference_month_id = ?", latest.ID)
	}

	rows := make([]models.OptionRow, 0)
	err := query.
		Where("cm.brand_id = ?", brandID).
		Order("cm.model_name, cm.id, my.year_description DESC, my.id").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query options of brand %d: %w", brandID, err)
	}
	return rows, latest, nil
}

// FindDefaultVehicle picks the initial selection: the brand matched
// case-insensitively, the first model whose name contains modelName (or
// the brand's first model), and that model's newest year. It returns nil
// when the catalogue has no match.
func (d *Database) FindDefaultVehicle(ctx context.Context, brandName, modelName string) (*models.DefaultVehicle, error) {
	db := d.db.WithContext(ctx)

	var brand models.Brand
	err := db.Where("LOWER(brand_name) = ?", strings.ToLower(brandName)).First(&brand).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query default brand: %w", err)
	}

	var model models.CarModel
	err = db.Where("brand_id = ? AND LOWER(model_name) LIKE ?", brand.ID, "%"+strings.ToLower(modelName)+"%").
		Order("model_name").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("brand_id = ?", brand.ID).Order("model_name").First(&model).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query default model: %w", err)
	}

	var year models.ModelYear
	err = db.Where("car_model_id = ?", model.ID).Order("year_description DESC").First(&year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query default year: %w", err)
	}

	return &models.DefaultVehicle{BrandID: brand.ID, ModelID: model.ID, ModelYearID: year.ID}, nil
}
