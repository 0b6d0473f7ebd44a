package accumulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	facturaPath = "../dte/testdata/factura_33.xml"
	notaPath    = "../dte/testdata/nota_credito_61.xml"
)

func TestAppendFileTwoDocuments(t *testing.T) {
	empty := New()

	ds, err := AppendFile(empty, facturaPath)
	require.NoError(t, err)
	ds, err = AppendFile(ds, notaPath)
	require.NoError(t, err)

	require.Zero(t, empty.Len())
	require.Equal(t, 2, ds.Len())
	require.Equal(t, Columns, ds.Columns())

	rows := ds.Rows()
	first, second := rows[0], rows[1]

	require.Equal(t, "76086428-5", first.RUT)
	require.Equal(t, "2024-03-05", first.Date)
	require.Equal(t, "1520", first.Folio)
	require.Equal(t, "1003000", first.NetAmount)
	require.True(t, first.HasPurchaseOrder)
	require.Equal(t, "4500123", first.PurchaseOrder)
	require.Equal(t, "33", first.DocType)
	require.Len(t, first.Items, 2)
	require.Equal(t, "PROVIDENCIA", first.Comuna)

	require.Equal(t, "88", second.Folio)
	require.Equal(t, "61", second.DocType)
	require.False(t, second.HasPurchaseOrder)
	require.Empty(t, second.PurchaseOrder)

	for _, row := range rows {
		values, err := row.Values()
		require.NoError(t, err)
		require.Len(t, values, len(Columns))
	}
}

func TestAppendDoesNotMutate(t *testing.T) {
	base := New().Append(Row{Folio: "1"})
	next := base.Append(Row{Folio: "2"})
	again := base.Append(Row{Folio: "3"})

	require.Equal(t, 1, base.Len())
	require.Equal(t, "2", next.Rows()[1].Folio)
	require.Equal(t, "3", again.Rows()[1].Folio)
}

func TestAppendSameFileTwice(t *testing.T) {
	ds, err := AppendFile(New(), facturaPath)
	require.NoError(t, err)
	ds, err = AppendFile(ds, facturaPath)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
}

func TestAppendFileMissing(t *testing.T) {
	_, err := AppendFile(New(), filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
}

func TestValuesEncodesItems(t *testing.T) {
	ds, err := AppendFile(New(), facturaPath)
	require.NoError(t, err)

	values, err := ds.Rows()[0].Values()
	require.NoError(t, err)
	require.Contains(t, values[6], `"Codigo":"TAL-001"`)
	require.Contains(t, values[6], `"Cant":"3"`)

	values, err = Row{}.Values()
	require.NoError(t, err)
	require.Equal(t, "[]", values[6])
}

func TestSaveAndOpen(t *testing.T) {
	ds, err := AppendFile(New(), facturaPath)
	require.NoError(t, err)
	ds, err = AppendFile(ds, notaPath)
	require.NoError(t, err)

	for _, name := range []string{"dataset.xlsx", "dataset.csv", "dataset.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)

			require.NoError(t, Save(ds, path))
			loaded, err := Open(path)
			require.NoError(t, err)
			require.Equal(t, ds.Rows(), loaded.Rows())

			// Accumulating into an existing file keeps earlier rows.
			more, err := AppendFile(loaded, facturaPath)
			require.NoError(t, err)
			require.NoError(t, Save(more, path))

			reloaded, err := Open(path)
			require.NoError(t, err)
			require.Equal(t, 3, reloaded.Len())
		})
	}
}

func TestSaveXLSXCellLimit(t *testing.T) {
	ds, err := AppendFile(New(), facturaPath)
	require.NoError(t, err)

	row := ds.Rows()[0]
	for {
		values, err := row.Values()
		require.NoError(t, err)
		if len(values[6]) > 2*excelize.TotalCellChars {
			break
		}
		row.Items = append(row.Items, row.Items...)
	}
	big := New().Append(row)

	dir := t.TempDir()
	xlsx := filepath.Join(dir, "dataset.xlsx")
	require.NoError(t, Save(ds, xlsx))
	before, err := os.ReadFile(xlsx)
	require.NoError(t, err)

	err = Save(big, xlsx)
	require.ErrorIs(t, err, ErrCellTooLong)
	require.ErrorContains(t, err, "row 1, items")

	// The previous dataset is untouched.
	after, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	// CSV keeps the full value.
	csvPath := filepath.Join(dir, "dataset.csv")
	require.NoError(t, Save(big, csvPath))
	loaded, err := Open(csvPath)
	require.NoError(t, err)
	require.Len(t, loaded.Rows()[0].Items, len(row.Items))
}

func TestOpenMissingIsEmpty(t *testing.T) {
	ds, err := Open(filepath.Join(t.TempDir(), "new.xlsx"))
	require.NoError(t, err)
	require.Zero(t, ds.Len())
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.ErrorIs(t, Save(New(), path), ErrUnsupportedFormat)

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	_, err = Open(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
