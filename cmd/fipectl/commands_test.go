package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipetracker/server/internal/models"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []uint
		wantErr bool
	}{
		{"1,2,3", []uint{1, 2, 3}, false},
		{" 4 , 5,", []uint{4, 5}, false},
		{"", nil, false},
		{"1,x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIDs(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportThenResolveBrand(t *testing.T) {
	dbPath = filepath.Join(t.TempDir(), "fipe.db")
	ctx := context.Background()

	assert.Equal(t, subcommands.ExitFailure, (&importCmd{}).Execute(ctx, nil))
	assert.Equal(t, subcommands.ExitFailure, (&importCmd{demo: true, file: "x.json"}).Execute(ctx, nil))
	require.Equal(t, subcommands.ExitSuccess, (&importCmd{demo: true}).Execute(ctx, nil))

	db, err := openReadOnly()
	require.NoError(t, err)
	defer db.Close()

	byName, err := resolveBrand(ctx, db, "volkswagen")
	require.NoError(t, err)
	brands, err := db.ListBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, brands[2].ID, byName)

	_, err = resolveBrand(ctx, db, "Lada")
	assert.ErrorIs(t, err, models.ErrNotFound)

	var count int64
	require.NoError(t, db.GetDB().Model(&models.CarPrice{}).Count(&count).Error)
	assert.Equal(t, int64(17), count)
}
