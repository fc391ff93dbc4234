package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipetracker/server/internal/models"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "fipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations())
	_, err = db.ImportFixture(context.Background(), DemoFixture())
	require.NoError(t, err)
	return db
}

func lookup(t *testing.T, db *Database, brand, model, year string) uint {
	t.Helper()
	id, err := db.LookupModelYear(context.Background(), brand, model, year)
	require.NoError(t, err)
	return id
}

func brandID(t *testing.T, db *Database, name string) uint {
	t.Helper()
	var brand models.Brand
	require.NoError(t, db.GetDB().Where("brand_name = ?", name).First(&brand).Error)
	return brand.ID
}

func monthOf(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestGetPriceSeries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gol := lookup(t, db, "Volkswagen", "Gol 1.0", "2023 Flex")

	tests := []struct {
		name      string
		rng       models.DateRange
		wantMonth []string
	}{
		{"unbounded", models.DateRange{}, []string{"2023-12", "2024-01", "2024-03", "2024-06"}},
		{"inclusive bounds", models.DateRange{Start: monthOf(2024, time.January), End: monthOf(2024, time.March)}, []string{"2024-01", "2024-03"}},
		{"open start", models.DateRange{End: monthOf(2024, time.January)}, []string{"2023-12", "2024-01"}},
		{"open end", models.DateRange{Start: monthOf(2024, time.April)}, []string{"2024-06"}},
		{"no data in range", models.DateRange{Start: monthOf(2022, time.January), End: monthOf(2022, time.June)}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := db.GetPriceSeries(ctx, gol, tt.rng)
			require.NoError(t, err)
			require.NotNil(t, series)

			got := make([]string, 0, len(series))
			for _, p := range series {
				got = append(got, p.Date.Format("2006-01"))
			}
			assert.Equal(t, tt.wantMonth, got)
		})
	}
}

func TestGetPriceSeries_Labels(t *testing.T) {
	db := setupTestDB(t)
	gol := lookup(t, db, "Volkswagen", "Gol 1.0", "2024 Flex")

	series, err := db.GetPriceSeries(context.Background(), gol, models.DateRange{})
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "janeiro/2024", series[0].Label)
	assert.Equal(t, "R$ 50.000,00", series[0].FormattedPrice)
	assert.True(t, series[1].Price.Equal(decimal.NewFromInt(45000)))
	assert.Equal(t, time.UTC, series[1].Date.Location())
}

func TestGetPriceSeries_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gol := lookup(t, db, "Volkswagen", "Gol 1.0", "2023 Flex")

	for _, rng := range []models.DateRange{
		{},
		{Start: monthOf(2024, time.January), End: monthOf(2024, time.June)},
	} {
		first, err := db.GetPriceSeries(ctx, gol, rng)
		require.NoError(t, err)
		second, err := db.GetPriceSeries(ctx, gol, rng)
		require.NoError(t, err)

		require.NotEmpty(t, first)
		assert.Equal(t, first, second)
	}
}

func TestGetPriceSeries_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetPriceSeries(ctx, 999999, models.DateRange{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	gol := lookup(t, db, "Volkswagen", "Gol 1.0", "2024 Flex")
	_, err = db.GetPriceSeries(ctx, gol, models.DateRange{
		Start: monthOf(2024, time.June),
		End:   monthOf(2024, time.January),
	})
	assert.ErrorIs(t, err, models.ErrInvalidRange)
}

func TestOptionRows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	vw := brandID(t, db, "Volkswagen")

	t.Run("latest month only", func(t *testing.T) {
		rows, latest, err := db.OptionRows(ctx, vw, true)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "2024-06", latest.MonthDate.UTC().Format("2006-01"))

		var got [][2]string
		for _, r := range rows {
			got = append(got, [2]string{r.ModelName, r.YearDescription})
		}
		assert.Equal(t, [][2]string{
			{"Gol 1.0", "2024 Flex"},
			{"Gol 1.0", "2023 Flex"},
			{"Polo", "2024 Flex"},
		}, got)
	})

	t.Run("all months", func(t *testing.T) {
		rows, latest, err := db.OptionRows(ctx, vw, false)
		require.NoError(t, err)
		assert.Nil(t, latest)
		assert.Len(t, rows, 5)
		assert.Equal(t, "Fox", rows[0].ModelName)
	})

	t.Run("unknown brand", func(t *testing.T) {
		_, _, err := db.OptionRows(ctx, 999999, true)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestOptionRows_NoMonths(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	brand := models.Brand{BrandCode: "1", Name: "Acura"}
	require.NoError(t, db.GetDB().Create(&brand).Error)

	rows, latest, err := db.OptionRows(context.Background(), brand.ID, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Nil(t, latest)
}

func TestFindDefaultVehicle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		brand     string
		model     string
		wantModel string
		wantYear  string
	}{
		{"case insensitive match", "volkswagen", "GOL", "Gol 1.0", "2024 Flex"},
		{"model falls back to first by name", "Volkswagen", "Beetle", "Fox", "2015 Flex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := db.FindDefaultVehicle(ctx, tt.brand, tt.model)
			require.NoError(t, err)
			require.NotNil(t, def)

			info, err := db.GetVehicleInfo(ctx, def.ModelYearID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, info.ModelName)
			assert.Equal(t, tt.wantYear, info.YearDescription)
			assert.Equal(t, info.BrandID, def.BrandID)
			assert.Equal(t, info.ModelID, def.ModelID)
		})
	}

	def, err := db.FindDefaultVehicle(ctx, "Lada", "Niva")
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestCatalogue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	brands, err := db.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 3)
	assert.Equal(t, "Acura", brands[0].Name)
	assert.Equal(t, "Volkswagen", brands[2].Name)

	carModels, err := db.ListModels(ctx, brands[2].ID)
	require.NoError(t, err)
	require.Len(t, carModels, 3)
	assert.Equal(t, "Fox", carModels[0].Name)

	years, err := db.ListYears(ctx, carModels[1].ID)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "2024 Flex", years[0].Description)
	assert.Equal(t, "2023 Flex", years[1].Description)

	months, err := db.ListMonths(ctx)
	require.NoError(t, err)
	require.Len(t, months, 5)
	assert.Equal(t, models.MonthOption{Date: "2023-12-01", Label: "dezembro/2023"}, months[0])
	assert.Equal(t, "junho/2024", months[4].Label)

	_, err = db.ListModels(ctx, 999999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.ListYears(ctx, 999999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetVehicleInfo(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	polo := lookup(t, db, "Volkswagen", "Polo", "2022 Gasolina")

	info, err := db.GetVehicleInfo(ctx, polo)
	require.NoError(t, err)
	assert.Equal(t, "Volkswagen", info.BrandName)
	assert.Equal(t, "Polo", info.ModelName)
	assert.Equal(t, "005527-1", info.FipeCode)

	_, err = db.GetVehicleInfo(ctx, 999999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = db.LookupModelYear(ctx, "Volkswagen", "Polo", "1999 Diesel")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestImportFixture_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	fx := DemoFixture()
	fx.Brands[0].Models[0].Years[0].Prices["2024-06"] = decimal.NewFromInt(44900)
	summary, err := db.ImportFixture(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Months)

	var count int64
	require.NoError(t, db.GetDB().Model(&models.CarPrice{}).Count(&count).Error)
	assert.Equal(t, int64(summary.Prices), count)

	gol := lookup(t, db, "Volkswagen", "Gol 1.0", "2024 Flex")
	series, err := db.GetPriceSeries(ctx, gol, models.DateRange{Start: monthOf(2024, time.June)})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, series[0].Price.Equal(decimal.NewFromInt(44900)))
}
