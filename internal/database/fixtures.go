package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fipetracker/server/internal/models"
)

// Fixture is a catalogue snapshot in the layout accepted by `fipectl import`.
// Prices are keyed by month ("2024-01").
type Fixture struct {
	Brands []FixtureBrand `json:"brands"`
}

type FixtureBrand struct {
	Code   string         `json:"code"`
	Name   string         `json:"name"`
	Models []FixtureModel `json:"models"`
}

type FixtureModel struct {
	Code  string        `json:"code"`
	Name  string        `json:"name"`
	Years []FixtureYear `json:"years"`
}

type FixtureYear struct {
	Code        string                     `json:"code"`
	Description string                     `json:"description"`
	FipeCode    string                     `json:"fipe_code"`
	VehicleType string                     `json:"vehicle_type,omitempty"`
	Prices      map[string]decimal.Decimal `json:"prices"`
}

// ImportSummary counts the rows touched by an import.
type ImportSummary struct {
	Brands int `json:"brands"`
	Models int `json:"models"`
	Years  int `json:"years"`
	Months int `json:"months"`
	Prices int `json:"prices"`
}

// LoadFixtureFile reads a JSON fixture from disk.
func LoadFixtureFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &fx, nil
}

// ImportFixture upserts a fixture in a single transaction. Existing rows are
// matched by their FIPE codes; an existing price for the same month and
// model year is overwritten.
func (d *Database) ImportFixture(ctx context.Context, fx *Fixture) (*ImportSummary, error) {
	summary := &ImportSummary{}
	months := make(map[string]uint)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range fx.Brands {
			brand := models.Brand{}
			if err := tx.Where(models.Brand{BrandCode: b.Code}).
				Attrs(models.Brand{Name: b.Name}).
				FirstOrCreate(&brand).Error; err != nil {
				return fmt.Errorf("brand %s: %w", b.Code, err)
			}
			summary.Brands++

			for _, m := range b.Models {
				model := models.CarModel{}
				if err := tx.Where(models.CarModel{BrandID: brand.ID, ModelCode: m.Code}).
					Attrs(models.CarModel{Name: m.Name}).
					FirstOrCreate(&model).Error; err != nil {
					return fmt.Errorf("model %s: %w", m.Code, err)
				}
				summary.Models++

				for _, y := range m.Years {
					year := models.ModelYear{}
					if err := tx.Where(models.ModelYear{CarModelID: model.ID, YearCode: y.Code}).
						Attrs(models.ModelYear{YearDescription: y.Description, FipeCode: y.FipeCode}).
						FirstOrCreate(&year).Error; err != nil {
						return fmt.Errorf("year %s: %w", y.Code, err)
					}
					summary.Years++

					codes := make([]string, 0, len(y.Prices))
					for code := range y.Prices {
						codes = append(codes, code)
					}
					sort.Strings(codes)

					for _, code := range codes {
						monthID, ok := months[code]
						if !ok {
							id, err := upsertMonth(tx, code)
							if err != nil {
								return err
							}
							months[code] = id
							monthID = id
						}

						price := models.CarPrice{
							ReferenceMonthID: monthID,
							ModelYearID:      year.ID,
							Price:            y.Prices[code],
							FipeCode:         y.FipeCode,
							VehicleType:      y.VehicleType,
							FuelType:         FuelType(y.Description),
						}
						if err := tx.Clauses(clause.OnConflict{
							Columns:   []clause.Column{{Name: "reference_month_id"}, {Name: "model_year_id"}},
							DoUpdates: clause.AssignmentColumns([]string{"price", "fipe_code", "vehicle_type", "fuel_type"}),
						}).Create(&price).Error; err != nil {
							return fmt.Errorf("price %s/%s: %w", y.Code, code, err)
						}
						summary.Prices++
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import fixture: %w", err)
	}

	summary.Months = len(months)
	return summary, nil
}

func upsertMonth(tx *gorm.DB, code string) (uint, error) {
	date, err := models.ParseMonth(code)
	if err != nil {
		return 0, err
	}
	if date.IsZero() {
		return 0, fmt.Errorf("%w: empty month code", models.ErrInvalidRequest)
	}

	month := models.ReferenceMonth{}
	if err := tx.Where(models.ReferenceMonth{MonthCode: code}).
		Attrs(models.ReferenceMonth{MonthDate: date}).
		FirstOrCreate(&month).Error; err != nil {
		return 0, fmt.Errorf("month %s: %w", code, err)
	}
	return month.ID, nil
}

func prices(kv ...string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = decimal.RequireFromString(kv[i+1])
	}
	return out
}

// DemoFixture is a small catalogue for local development. It covers the
// cases the UI has to handle: gaps in a series, year descriptions shared by
// several models, and vehicles missing from the latest month.
func DemoFixture() *Fixture {
	return &Fixture{Brands: []FixtureBrand{
		{Code: "59", Name: "Volkswagen", Models: []FixtureModel{
			{Code: "5940", Name: "Gol 1.0", Years: []FixtureYear{
				{Code: "2024-1", Description: "2024 Flex", FipeCode: "005340-6", VehicleType: "carro",
					Prices: prices("2024-01", "50000", "2024-06", "45000")},
				{Code: "2023-1", Description: "2023 Flex", FipeCode: "005340-6", VehicleType: "carro",
					Prices: prices("2023-12", "47000", "2024-01", "46500", "2024-03", "45500", "2024-06", "44000")},
			}},
			{Code: "5941", Name: "Polo", Years: []FixtureYear{
				{Code: "2024-1", Description: "2024 Flex", FipeCode: "005527-1", VehicleType: "carro",
					Prices: prices("2024-01", "80000", "2024-03", "79000", "2024-06", "78000")},
				{Code: "2022-2", Description: "2022 Gasolina", FipeCode: "005527-1", VehicleType: "carro",
					Prices: prices("2023-12", "70000", "2024-01", "69000")},
			}},
			{Code: "5942", Name: "Fox", Years: []FixtureYear{
				{Code: "2015-1", Description: "2015 Flex", FipeCode: "005301-5", VehicleType: "carro",
					Prices: prices("2023-12", "30000", "2024-01", "29500")},
			}},
		}},
		{Code: "21", Name: "Fiat", Models: []FixtureModel{
			{Code: "2101", Name: "Uno", Years: []FixtureYear{
				{Code: "2024-1", Description: "2024 Flex", FipeCode: "001267-0", VehicleType: "carro",
					Prices: prices("2024-06", "60000")},
				{Code: "2021-2", Description: "2021 Gasolina", FipeCode: "001267-0", VehicleType: "carro",
					Prices: prices("2024-05", "38000", "2024-06", "37500")},
			}},
		}},
		{Code: "1", Name: "Acura", Models: []FixtureModel{
			{Code: "101", Name: "Integra GS 1.8", Years: []FixtureYear{
				{Code: "1992-1", Description: "1992 Gasolina", FipeCode: "038001-7", VehicleType: "carro",
					Prices: prices("2024-06", "12000")},
			}},
		}},
	}}
}
