package options

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fipetracker/server/internal/database"
	"fipetracker/server/internal/models"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) OptionRows(ctx context.Context, brandID uint, latestOnly bool) ([]models.OptionRow, *models.ReferenceMonth, error) {
	args := m.Called(ctx, brandID, latestOnly)
	rows, _ := args.Get(0).([]models.OptionRow)
	month, _ := args.Get(1).(*models.ReferenceMonth)
	return rows, month, args.Error(2)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestService_BuildIndex(t *testing.T) {
	source := new(MockSource)
	latest := &models.ReferenceMonth{ID: 3, MonthDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)}
	source.On("OptionRows", mock.Anything, uint(1), true).Return(sampleRows(), latest, nil)

	idx, err := NewService(source, true, quietLogger()).BuildIndex(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", idx.ReferenceMonth)
	assert.Len(t, idx.Models, 2)
	source.AssertExpectations(t)
}

func TestService_PassesPolicyAndErrors(t *testing.T) {
	source := new(MockSource)
	source.On("OptionRows", mock.Anything, uint(9), false).Return(nil, nil, models.ErrNotFound)

	_, err := NewService(source, false, nil).BuildIndex(context.Background(), 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
	source.AssertExpectations(t)
}

func TestService_LatestMonthMembershipIsExact(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "fipe.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())
	_, err = db.ImportFixture(context.Background(), database.DemoFixture())
	require.NoError(t, err)

	var vw models.Brand
	require.NoError(t, db.GetDB().Where("brand_name = ?", "Volkswagen").First(&vw).Error)

	idx, err := NewService(db, true, quietLogger()).BuildIndex(context.Background(), vw.ID)
	require.NoError(t, err)
	require.NoError(t, idx.Validate())

	latest, err := db.LatestMonth(context.Background())
	require.NoError(t, err)

	// Every offered pair must have a price in the latest month and belong to its model
	for modelID, byYear := range idx.ModelYearLookup {
		for year, modelYearID := range byYear {
			var my models.ModelYear
			require.NoError(t, db.GetDB().First(&my, modelYearID).Error)
			assert.Equal(t, modelID, my.CarModelID)
			assert.Equal(t, year, my.YearDescription)

			var count int64
			require.NoError(t, db.GetDB().Model(&models.CarPrice{}).
				Where("model_year_id = ? AND reference_month_id = ?", modelYearID, latest.ID).
				Count(&count).Error)
			assert.Equal(t, int64(1), count, "model year %d", modelYearID)
		}
	}

	for _, m := range idx.Models {
		assert.NotEqual(t, "Fox", m.Name, "models without a latest-month price are not selectable")
	}
	assert.NotContains(t, idx.YearDescriptions, "2022 Gasolina")

	all, err := NewService(db, false, quietLogger()).BuildIndex(context.Background(), vw.ID)
	require.NoError(t, err)
	assert.Len(t, all.Models, 3)
	assert.Contains(t, all.YearDescriptions, "2022 Gasolina")
}
