package accumulator

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedFormat is returned for dataset paths with an unknown
// extension.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// ErrCellTooLong is returned when a value does not fit in one XLSX cell
// (excelize.TotalCellChars UTF-16 units). Excel would truncate it, which
// breaks the items JSON on the next read, so the save is refused and the
// existing file is left alone. CSV and SQLite datasets have no such limit.
var ErrCellTooLong = errors.New("value too long for an xlsx cell")

// SheetName is the worksheet that holds the dataset in XLSX files.
const SheetName = "dataset"

// TableName is the table that holds the dataset in SQLite files.
const TableName = "dte_dataset"

// Open reads the dataset stored at path. A missing file is an empty
// dataset, so the first run of an accumulation starts from scratch.
//
// Supported extensions: .xlsx, .csv, .db/.sqlite.
func Open(path string) (*Dataset, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, err := format(path); err != nil {
			return nil, err
		}
		return New(), nil
	}

	f, err := format(path)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch f {
	case "xlsx":
		rows, err = readXLSX(path)
	case "csv":
		rows, err = readCSV(path)
	case "sqlite":
		rows, err = readSQLite(path)
	}
	if err != nil {
		return nil, err
	}

	ds := New()
	for i, values := range rows {
		row, err := rowFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", i+1, path, err)
		}
		ds = ds.Append(row)
	}
	return ds, nil
}

// Save writes the whole dataset to path, replacing previous contents.
func Save(ds *Dataset, path string) error {
	f, err := format(path)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, ds.Len())
	for _, row := range ds.Rows() {
		values, err := row.Values()
		if err != nil {
			return err
		}
		rows = append(rows, values)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	switch f {
	case "xlsx":
		return writeXLSX(path, rows)
	case "csv":
		return writeCSV(path, rows)
	default:
		return writeSQLite(path, rows)
	}
}

func format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "xlsx", nil
	case ".csv":
		return "csv", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// =============================================================================
// XLSX
// =============================================================================

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("dataset file has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return dataRows(rows), nil
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, bold)
	}

	for i, values := range rows {
		for c, value := range values {
			if n := len(utf16.Encode([]rune(value))); n > excelize.TotalCellChars {
				return fmt.Errorf("%w: row %d, %s has %d characters (limit %d); use a .csv or .db dataset",
					ErrCellTooLong, i+1, Columns[c], n, excelize.TotalCellChars)
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// =============================================================================
// CSV
// =============================================================================

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return dataRows(rows), nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}

	writer := csv.NewWriter(file)
	err = writer.Write(Columns)
	if err == nil {
		err = writer.WriteAll(rows)
	}
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close dataset file: %w", err)
	}
	return nil
}

// dataRows drops the header row and blank rows.
func dataRows(rows [][]string) [][]string {
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == Columns[0] {
		rows = rows[1:]
	}
	out := rows[:0:0]
	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// SQLITE
// =============================================================================

const createTable = `
CREATE TABLE IF NOT EXISTS dte_dataset (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	rut            TEXT NOT NULL,
	fecha          TEXT NOT NULL,
	folio          TEXT NOT NULL,
	montoNeto      TEXT NOT NULL,
	referencias_oc TEXT,
	tipoDoc        TEXT NOT NULL,
	items          TEXT NOT NULL,
	comuna         TEXT NOT NULL
);
`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return db, nil
}

func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readSQLite(path string) ([][]string, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rs, err := db.Query(`SELECT rut, fecha, folio, montoNeto, COALESCE(referencias_oc, ''), tipoDoc, items, comuna
		FROM dte_dataset ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rs.Close()

	var rows [][]string
	for rs.Next() {
		values := make([]string, len(Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		rows = append(rows, values)
	}
	return rows, rs.Err()
}

func writeSQLite(path string, rows [][]string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	return withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM dte_dataset`); err != nil {
			return fmt.Errorf("clear dataset: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO dte_dataset
			(rut, fecha, folio, montoNeto, referencias_oc, tipoDoc, items, comuna)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, v := range rows {
			var oc any
			if v[4] != "" {
				oc = v[4]
			}
			if _, err := stmt.Exec(v[0], v[1], v[2], v[3], oc, v[5], v[6], v[7]); err != nil {
				return fmt.Errorf("insert row %d: %w", i+1, err)
			}
		}
		return nil
	})
}
