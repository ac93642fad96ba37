//go:build integration

package tests

import (
	"bytes"
	"context"
	"testing"

	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"
	"erp-asset-api/internal/testutil"
	"erp-asset-api/pkg/importer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Assets")
	require.NoError(t, err)
	for _, values := range rows {
		row := sh.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportExcelUpserts(t *testing.T) {
	pg, _ := setupStore(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testutil.DSN())
	require.NoError(t, err)
	defer pool.Close()

	createAsset(t, pg, "A-100")

	data := workbook(t, [][]string{
		{"Asset Tag", "Asset Type", "S/N", "Manufacturer"},
		{"A-100", "Laptop", "SN-1", "Dell"},
		{"A-101", "Monitor", "SN-2", "LG"},
		{"", "Laptop", "SN-3", ""},
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		summary, err := importer.ImportExcel(ctx, pool, bytes.NewReader(data), importer.ImportOptions{DryRun: true, Actor: "importer"})
		require.NoError(t, err)
		assert.True(t, summary.DryRun)
		assert.Equal(t, 1, summary.Inserted)

		_, err = pg.AssetByBusinessID(ctx, "A-101")
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})

	t.Run("commit", func(t *testing.T) {
		summary, err := importer.ImportExcel(ctx, pool, bytes.NewReader(data), importer.ImportOptions{Actor: "importer"})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Inserted)
		assert.Equal(t, 1, summary.Updated)

		a, err := pg.AssetByBusinessID(ctx, "A-101")
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, a.Status)
		require.NotNil(t, a.Manufacturer)
		assert.Equal(t, "LG", *a.Manufacturer)

		existing, err := pg.AssetByBusinessID(ctx, "A-100")
		require.NoError(t, err)
		require.NotNil(t, existing.SerialNumber)
		assert.Equal(t, "SN-1", *existing.SerialNumber)
	})
}
