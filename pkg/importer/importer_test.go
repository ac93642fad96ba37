package importer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func buildWorkbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, values := range rows {
			row := sh.AddRow()
			for _, v := range values {
				row.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

type fakeWriter struct {
	existing map[string]bool
	fail     map[string]error
	written  []Row
}

func (w *fakeWriter) Upsert(_ context.Context, row Row, _ string) (bool, error) {
	if err := w.fail[row.AssetID()]; err != nil {
		return false, err
	}
	w.written = append(w.written, row)
	if w.existing[row.AssetID()] {
		return false, nil
	}
	if w.existing == nil {
		w.existing = map[string]bool{}
	}
	w.existing[row.AssetID()] = true
	return true, nil
}

func TestReadWorkbookDefaultMapping(t *testing.T) {
	data := buildWorkbook(t, map[string][][]string{
		"Assets": {
			{"Asset Tag", "Asset Type", "S/N", "Manufacturer", "RAM (GB)"},
			{"A-100", "Laptop", "SN-1", "Dell", "16"},
			{"", "", "", "", ""},
			{"A-101", "Monitor", "SN-2", "LG", ""},
			{"", "Laptop", "SN-3", "", ""},
			{"A-102", "Laptop", "", "", "lots"},
		},
		"Notes": {{"ignored"}},
	})

	sheets, err := ReadWorkbook(data, DefaultMapping())
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	s := sheets[0]
	assert.Equal(t, "Assets", s.Name)
	assert.Equal(t, 1, s.Skipped)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "A-100", s.Rows[0].AssetID())
	assert.Equal(t, 2, s.Rows[0].Number)
	assert.Equal(t, "SN-1", s.Rows[0].Fields["serial_number"])
	assert.Equal(t, "16", s.Rows[0].Fields["ram_size_gb"])
	assert.Equal(t, "A-101", s.Rows[1].AssetID())
	assert.NotContains(t, s.Rows[1].Fields, "ram_size_gb")

	require.Len(t, s.Errors, 2)
	assert.Equal(t, 5, s.Errors[0].Row)
	assert.Contains(t, s.Errors[0].Message, "asset_id is required")
	assert.Equal(t, 6, s.Errors[1].Row)
	assert.Contains(t, s.Errors[1].Message, "invalid number")
}

func TestApplyCountsInsertsAndUpdates(t *testing.T) {
	sheets := []Sheet{{
		Name: "Assets",
		Rows: []Row{
			{Sheet: "Assets", Number: 2, Fields: map[string]string{"asset_id": "A-1"}},
			{Sheet: "Assets", Number: 3, Fields: map[string]string{"asset_id": "A-2"}},
			{Sheet: "Assets", Number: 4, Fields: map[string]string{"asset_id": "A-3"}},
		},
		Skipped: 2,
		Errors:  []RowError{{Sheet: "Assets", Row: 5, Message: "asset_id is required"}},
	}}
	w := &fakeWriter{
		existing: map[string]bool{"A-2": true},
		fail:     map[string]error{"A-3": errors.New("value too long")},
	}

	sum, err := Apply(context.Background(), w, sheets, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 2, sum.Errors)
	require.Len(t, sum.Sheets, 1)
	require.Len(t, sum.Sheets[0].Samples, 2)
	assert.Equal(t, 4, sum.Sheets[0].Samples[1].Row)
}

func TestApplyStopsAfterMaxErrors(t *testing.T) {
	rows := make([]Row, 0, 5)
	fail := map[string]error{}
	for _, id := range []string{"A-1", "A-2", "A-3", "A-4", "A-5"} {
		rows = append(rows, Row{Sheet: "Assets", Fields: map[string]string{"asset_id": id}})
		fail[id] = errors.New("boom")
	}
	w := &fakeWriter{fail: fail}

	sum, err := Apply(context.Background(), w, []Sheet{{Name: "Assets", Rows: rows}}, ImportOptions{MaxErrors: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many errors")
	assert.Equal(t, 3, sum.Errors)
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]byte(`
version: 1
sheets:
  Laptops:
    asset_type: Laptop
    aliases:
      Tag: ["Asset Tag"]
    columns:
      Tag: {field: asset_id, type: TEXT}
      Serial: {field: serial_number}
`))
	require.NoError(t, err)
	assert.Equal(t, "Laptop", m.Sheets["Laptops"].AssetType)

	_, err = ParseMapping([]byte(`
sheets:
  Laptops:
    columns:
      Serial: {field: serial_number}
`))
	assert.ErrorContains(t, err, "must map a column to asset_id")

	_, err = ParseMapping([]byte(`
sheets:
  Laptops:
    columns:
      Tag: {field: asset_id}
      Site: {field: site_id}
`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestSheetAssetTypeDefault(t *testing.T) {
	m, err := ParseMapping([]byte(`
sheets:
  Laptops:
    asset_type: Laptop
    columns:
      Tag: {field: asset_id}
      Type: {field: asset_type}
`))
	require.NoError(t, err)

	data := buildWorkbook(t, map[string][][]string{
		"Laptops": {
			{"Tag", "Type"},
			{"L-1", ""},
			{"L-2", "Tablet"},
		},
	})
	sheets, err := ReadWorkbook(data, m)
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 2)
	assert.Equal(t, "Laptop", sheets[0].Rows[0].Fields["asset_type"])
	assert.Equal(t, "Tablet", sheets[0].Rows[1].Fields["asset_type"])
}
