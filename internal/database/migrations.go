package database

import (
	"fmt"

	"fipetracker/server/internal/models"
)

// RunMigrations creates the FIPE schema on an empty database. Production
// databases are created by the ingestion process; this serves local
// development, the import command and tests.
func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(models.AllTables()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Series lookups filter by model year and sort by month
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_car_prices_model_year_month
		ON car_prices(model_year_id, reference_month_id);
	`).Error; err != nil {
		return err
	}

	return nil
}
