package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipetracker/server/internal/models"
)

const (
	golID  uint = 10
	poloID uint = 20
)

func sampleRows() []models.OptionRow {
	return []models.OptionRow{
		{ModelID: golID, ModelName: "Gol", ModelYearID: 101, YearDescription: "2024 Flex"},
		{ModelID: golID, ModelName: "Gol", ModelYearID: 102, YearDescription: "2023 Flex"},
		{ModelID: poloID, ModelName: "Polo", ModelYearID: 201, YearDescription: "2024 Flex"},
		{ModelID: poloID, ModelName: "Polo", ModelYearID: 202, YearDescription: "2022 Gasolina"},
	}
}

func TestBuild(t *testing.T) {
	idx := Build(1, sampleRows())

	assert.Equal(t, uint(1), idx.BrandID)
	assert.Equal(t, []models.ModelOption{{ID: golID, Name: "Gol"}, {ID: poloID, Name: "Polo"}}, idx.Models)
	assert.Equal(t, []string{"2024 Flex", "2023 Flex", "2022 Gasolina"}, idx.YearDescriptions)
	assert.Equal(t, []string{"2024 Flex", "2023 Flex"}, idx.ModelToYears[golID])
	assert.Equal(t, []uint{golID, poloID}, idx.YearToModels["2024 Flex"])
	assert.Equal(t, uint(201), idx.ModelYearLookup[poloID]["2024 Flex"])
	require.NoError(t, idx.Validate())
}

func TestBuild_SharedDescriptionResolvesPerModel(t *testing.T) {
	idx := Build(1, sampleRows())

	gol, err := idx.Resolve(golID, "2024 Flex")
	require.NoError(t, err)
	polo, err := idx.Resolve(poloID, "2024 Flex")
	require.NoError(t, err)

	assert.NotEqual(t, gol, polo)

	_, err = idx.Resolve(golID, "2022 Gasolina")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBuild_DuplicatePairKeepsFirst(t *testing.T) {
	rows := append(sampleRows(), models.OptionRow{
		ModelID: golID, ModelName: "Gol", ModelYearID: 999, YearDescription: "2024 Flex",
	})

	idx := Build(1, rows)

	assert.Equal(t, uint(101), idx.ModelYearLookup[golID]["2024 Flex"])
	assert.Len(t, idx.ModelToYears[golID], 2)
	assert.Len(t, idx.YearToModels["2024 Flex"], 2)
	require.NoError(t, idx.Validate())
}

func TestBuild_Empty(t *testing.T) {
	idx := Build(7, nil)

	assert.NotNil(t, idx.Models)
	assert.NotNil(t, idx.YearDescriptions)
	assert.Empty(t, idx.ModelYearLookup)
	assert.NoError(t, idx.Validate())
}

func TestValidate_DetectsInconsistency(t *testing.T) {
	idx := Build(1, sampleRows())
	delete(idx.ModelYearLookup[golID], "2023 Flex")
	assert.Error(t, idx.Validate())

	idx = Build(1, sampleRows())
	idx.ModelYearLookup[golID]["1999 Diesel"] = 5
	assert.Error(t, idx.Validate())

	idx = Build(1, sampleRows())
	idx.YearToModels["2023 Flex"] = nil
	assert.Error(t, idx.Validate())
}

func TestFilter(t *testing.T) {
	idx := Build(1, sampleRows())

	tests := []struct {
		name       string
		sel        Selection
		wantModels []uint
		wantYears  []string
		wantID     uint
	}{
		{
			name:       "nothing selected",
			sel:        Selection{},
			wantModels: []uint{golID, poloID},
			wantYears:  []string{"2024 Flex", "2023 Flex", "2022 Gasolina"},
		},
		{
			name:       "model first",
			sel:        Selection{ModelID: poloID},
			wantModels: []uint{golID, poloID},
			wantYears:  []string{"2024 Flex", "2022 Gasolina"},
		},
		{
			name:       "year first",
			sel:        Selection{Year: "2023 Flex"},
			wantModels: []uint{golID},
			wantYears:  []string{"2024 Flex", "2023 Flex", "2022 Gasolina"},
		},
		{
			name:       "both resolve",
			sel:        Selection{ModelID: golID, Year: "2024 Flex"},
			wantModels: []uint{golID, poloID},
			wantYears:  []string{"2024 Flex", "2023 Flex"},
			wantID:     101,
		},
		{
			name:       "both without pair",
			sel:        Selection{ModelID: golID, Year: "2022 Gasolina"},
			wantModels: []uint{poloID},
			wantYears:  []string{"2024 Flex", "2023 Flex"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Filter(tt.sel)
			require.NoError(t, err)

			var ids []uint
			for _, m := range got.Models {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.wantModels, ids)
			assert.Equal(t, tt.wantYears, got.Years)
			assert.Equal(t, tt.wantID, got.ModelYearID)
		})
	}
}

func TestFilter_UnknownSelection(t *testing.T) {
	idx := Build(1, sampleRows())

	_, err := idx.Filter(Selection{ModelID: 404})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = idx.Filter(Selection{Year: "1950 Diesel"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}
