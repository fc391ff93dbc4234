package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fipetracker/server/internal/format"
	"fipetracker/server/internal/models"
)

type Database struct {
	db *gorm.DB
}

// NewDatabase opens the sqlite file at dbPath for reading and writing.
func NewDatabase(dbPath string) (*Database, error) {
	return open(dbPath)
}

// NewReadOnlyDatabase opens an existing sqlite file in read-only mode.
// The server never writes; the data is owned by the ingestion process.
func NewReadOnlyDatabase(dbPath string) (*Database, error) {
	return open(fmt.Sprintf("file:%s?mode=ro", dbPath))
}

func open(dsn string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Ping checks that the underlying connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ensureExists returns ErrNotFound when no row of model has the given id.
func (d *Database) ensureExists(ctx context.Context, model interface{}, kind string, id uint) error {
	var count int64
	if err := d.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up %s %d: %w", kind, id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %d", models.ErrNotFound, kind, id)
	}
	return nil
}

// ListBrands returns every brand ordered by name.
func (d *Database) ListBrands(ctx context.Context) ([]models.BrandOption, error) {
	brands := make([]models.BrandOption, 0)
	err := d.db.WithContext(ctx).
		Model(&models.Brand{}).
		Select("id, brand_name AS name").
		Order("brand_name").
		Scan(&brands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	return brands, nil
}

// ListModels returns the models of a brand ordered by name.
func (d *Database) ListModels(ctx context.Context, brandID uint) ([]models.ModelOption, error) {
	if err := d.ensureExists(ctx, &models.Brand{}, "brand", brandID); err != nil {
		return nil, err
	}

	carModels := make([]models.ModelOption, 0)
	err := d.db.WithContext(ctx).
		Model(&models.CarModel{}).
		Select("id, model_name AS name").
		Where("brand_id = ?", brandID).
		Order("model_name").
		Scan(&carModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query models of brand %d: %w", brandID, err)
	}
	return carModels, nil
}

// ListYears returns the year descriptions of a model, newest first.
func (d *Database) ListYears(ctx context.Context, modelID uint) ([]models.YearOption, error) {
	if err := d.ensureExists(ctx, &models.CarModel{}, "model", modelID); err != nil {
		return nil, err
	}

	years := make([]models.YearOption, 0)
	err := d.db.WithContext(ctx).
		Model(&models.ModelYear{}).
		Select("id, year_description AS description").
		Where("car_model_id = ?", modelID).
		Order("year_description DESC").
		Scan(&years).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query years of model %d: %w", modelID, err)
	}
	return years, nil
}

// ListMonths returns every reference month in chronological order.
func (d *Database) ListMonths(ctx context.Context) ([]models.MonthOption, error) {
	var months []models.ReferenceMonth
	if err := d.db.WithContext(ctx).Order("month_date").Find(&months).Error; err != nil {
		return nil, fmt.Errorf("failed to query reference months: %w", err)
	}

	out := make([]models.MonthOption, 0, len(months))
	for _, m := range months {
		date := models.FirstOfMonth(m.MonthDate.UTC())
		out = append(out, models.MonthOption{
			Date:  date.Format("2006-01-02"),
			Label: format.MonthPT(date),
		})
	}
	return out, nil
}

// LatestMonth returns the most recent reference month, or ErrNotFound on an empty table.
func (d *Database) LatestMonth(ctx context.Context) (*models.ReferenceMonth, error) {
	var month models.ReferenceMonth
	err := d.db.WithContext(ctx).Order("month_date DESC").First(&month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no reference months", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest month: %w", err)
	}
	return &month, nil
}

// monthID resolves a calendar month to its reference month id. Dates are
// compared through sqlite's date functions so rows written by other clients match
// regardless of their timestamp layout.
func (d *Database) monthID(ctx context.Context, month time.Time) (uint, error) {
	var rm models.ReferenceMonth
	err := d.db.WithContext(ctx).
		Where("strftime('%Y-%m', month_date) = ?", month.Format("2006-01")).
		First(&rm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: reference month %s", models.ErrNotFound, month.Format("2006-01"))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query reference month: %w", err)
	}
	return rm.ID, nil
}
