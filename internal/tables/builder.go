// =============================================================================
// DTE to PDF Converter - Table Builder
// =============================================================================
//
// This module turns the parsed line items, references and tax entries into
// display-ready tables and the HTML fragments the invoice template embeds.
//
// ITEMS TABLE (fixed column order, the template binds by position):
//
//   | Item | Codigo | Descripcion | Cant | P. Unitario | Dscto | Total |
//   |------|--------|-------------|------|-------------|-------|-------|
//   | 1    | TAL-1  | TALADRO     | 3.0  | 1.000       | 0     | 3.000 |
//   |      |        |             |      |             |       |       |  <- padding
//
//   The printed layout has a fixed height, so short tables are padded with
//   blank rows up to MinRows. Long tables are never truncated.
//
// =============================================================================

package tables

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinRows is the default minimum row count of the items table.
const MinRows = 20

// Columns is the column order of the items table.
var Columns = []string{"Item", "Codigo", "Descripcion", "Cant", "P. Unitario", "Dscto", "Total"}

// taxColumns is the header of the taxes table.
var taxColumns = []string{"Impuesto", "Tasa", "Monto"}

// NoReferencesRow is emitted in place of the references rows when the
// document carries none.
const NoReferencesRow = "<tr><td colspan='4'>No hay referencias</td></tr>"

// =============================================================================
// ERRORS
// =============================================================================

// ErrFieldFormat matches any FieldFormatError through errors.Is.
var ErrFieldFormat = errors.New("field format error")

// FieldFormatError reports a numeric field that could not be coerced.
type FieldFormatError struct {
	// Field is the logical field name ("Cant", "rate", "monto").
	Field string

	// Value is the offending raw value.
	Value string

	// Row is the 1-based position in the source collection.
	Row int

	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface.
func (e *FieldFormatError) Error() string {
	return fmt.Sprintf("field %s at row %d: cannot convert %q to a number: %v", e.Field, e.Row, e.Value, e.Err)
}

// Is makes errors.Is(err, ErrFieldFormat) succeed.
func (e *FieldFormatError) Is(target error) bool {
	return target == ErrFieldFormat
}

// Unwrap returns the parse error.
func (e *FieldFormatError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DISPLAY TABLE
// =============================================================================

// DisplayTable is an ordered set of rows under fixed columns.
type DisplayTable struct {
	Columns []string
	Rows    [][]string
}

// BuildItems derives the items table from the parsed line items.
//
// PARAMETERS:
//   - items: The document's line items.
//   - minRows: The padded height; values <= 0 use MinRows.
//
// RETURNS:
//   - The display table, padded to minRows.
//   - A *FieldFormatError if a quantity or rate is not numeric.
func BuildItems(items []dte.LineItem, minRows int) (*DisplayTable, error) {
	if minRows <= 0 {
		minRows = MinRows
	}

	table := &DisplayTable{
		Columns: Columns,
		Rows:    make([][]string, 0, max(len(items), minRows)),
	}

	for i, item := range items {
		qty, err := parseDecimal(item.Quantity)
		if err != nil {
			return nil, &FieldFormatError{Field: "Cant", Value: item.Quantity, Row: i + 1, Err: err}
		}
		rate, err := parseDecimal(item.Rate)
		if err != nil {
			return nil, &FieldFormatError{Field: "rate", Value: item.Rate, Row: i + 1, Err: err}
		}

		unitPrice := rate.Truncate(0).IntPart()
		total := qty.Mul(rate).Truncate(0).IntPart()

		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			item.Code,
			item.Description,
			formatQuantity(qty),
			Thousands(unitPrice, "."),
			"0",
			Thousands(total, "."),
		})
	}

	for len(table.Rows) < minRows {
		table.Rows = append(table.Rows, make([]string, len(Columns)))
	}

	return table, nil
}

// =============================================================================
// HTML FRAGMENTS
// =============================================================================

// ItemsHTML renders the items table with its header row.
func ItemsHTML(table *DisplayTable) string {
	return renderTable("items_factura", table.Columns, table.Rows)
}

// ReferencesHTML renders the references as bare table rows: no wrapper, no
// header, no index column. The template supplies the <table> element.
func ReferencesHTML(refs []dte.Reference) string {
	if len(refs) == 0 {
		return NoReferencesRow
	}

	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, []string{ref.DocTypeWords, ref.Folio, ref.Date, ref.Reason})
	}

	var b strings.Builder
	writeBody(&b, rows)
	return b.String()
}

// SumTaxes adds up the tax amounts. An empty collection sums to 0.
func SumTaxes(entries []dte.TaxEntry) (int64, error) {
	var sum int64
	for i, entry := range entries {
		amount, err := strconv.ParseInt(strings.TrimSpace(entry.Amount), 10, 64)
		if err != nil {
			return 0, &FieldFormatError{Field: "monto", Value: entry.Amount, Row: i + 1, Err: err}
		}
		sum += amount
	}
	return sum, nil
}

// TaxesHTML renders the full taxes table, or "" when there are no entries.
func TaxesHTML(entries []dte.TaxEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		amount, err := strconv.ParseInt(strings.TrimSpace(entry.Amount), 10, 64)
		if err != nil {
			return "", &FieldFormatError{Field: "monto", Value: entry.Amount, Row: i + 1, Err: err}
		}
		rate := entry.Rate
		if rate != "" {
			rate += "%"
		}
		rows = append(rows, []string{entry.KindWords, rate, Thousands(amount, ".")})
	}

	return renderTable("impuestos", taxColumns, rows), nil
}

func renderTable(class string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<table class="%s">`, class)
	b.WriteString("<thead><tr>")
	for _, col := range columns {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(col))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead>")
	writeBody(&b, rows)
	b.WriteString("</table>")
	return b.String()
}

func writeBody(b *strings.Builder, rows [][]string) {
	b.WriteString("<tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(cell))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody>")
}

// =============================================================================
// NUMBER FORMATTING
// =============================================================================

// grouping is only used for its digit grouping; the separator is swapped
// afterwards so the output does not depend on the host locale.
var grouping = message.NewPrinter(language.English)

// Thousands formats n with sep between groups of three digits.
//
// EXAMPLE:
//   Thousands(1193570, ".") -> "1.193.570"
func Thousands(n int64, sep string) string {
	s := grouping.Sprintf("%d", n)
	if sep == "," {
		return s
	}
	return strings.ReplaceAll(s, ",", sep)
}

// ParseAmount reads an integer amount as found in DTE totals. Empty text
// reads as zero.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Truncate(0).IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("empty value")
	}
	return decimal.NewFromString(s)
}

// formatQuantity prints a quantity as a floating value: at least one
// fractional digit ("3.0", "2.5").
func formatQuantity(q decimal.Decimal) string {
	s := q.String()
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
