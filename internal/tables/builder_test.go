package tables

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []dte.LineItem {
	items := make([]dte.LineItem, n)
	for i := range items {
		items[i] = dte.LineItem{
			Code:        fmt.Sprintf("C%d", i+1),
			Description: fmt.Sprintf("ITEM %d", i+1),
			Quantity:    "1",
			Rate:        "100",
		}
	}
	return items
}

func TestBuildItemsPadding(t *testing.T) {
	tests := []struct {
		name     string
		items    int
		wantRows int
	}{
		{name: "empty", items: 0, wantRows: 20},
		{name: "short", items: 3, wantRows: 20},
		{name: "exact", items: 20, wantRows: 20},
		{name: "long", items: 27, wantRows: 27},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := BuildItems(makeItems(tt.items), 0)
			require.NoError(t, err)
			require.Len(t, table.Rows, tt.wantRows)
			require.Equal(t, Columns, table.Columns)

			for i := 0; i < tt.items; i++ {
				require.Equal(t, fmt.Sprint(i+1), table.Rows[i][0])
				require.Equal(t, fmt.Sprintf("ITEM %d", i+1), table.Rows[i][2])
			}
			for i := tt.items; i < tt.wantRows; i++ {
				require.Equal(t, []string{"", "", "", "", "", "", ""}, table.Rows[i])
			}
		})
	}
}

func TestBuildItemsDerivedColumns(t *testing.T) {
	items := []dte.LineItem{
		{Code: "TAL-001", Description: "TALADRO", Quantity: "3", Rate: "1000.0"},
		{Description: "CABLE", Quantity: "2.5", Rate: "1999.99"},
		{Description: "SACO", Quantity: "200", Rate: "5000"},
	}

	table, err := BuildItems(items, 20)
	require.NoError(t, err)

	require.Equal(t, []string{"1", "TAL-001", "TALADRO", "3.0", "1.000", "0", "3.000"}, table.Rows[0])
	// 2.5 * 1999.99 = 4999.975, truncated.
	require.Equal(t, []string{"2", "", "CABLE", "2.5", "1.999", "0", "4.999"}, table.Rows[1])
	require.Equal(t, "1.000.000", table.Rows[2][6])
}

func TestBuildItemsFieldFormat(t *testing.T) {
	tests := []struct {
		name      string
		item      dte.LineItem
		wantField string
	}{
		{name: "bad quantity", item: dte.LineItem{Quantity: "tres", Rate: "10"}, wantField: "Cant"},
		{name: "missing quantity", item: dte.LineItem{Rate: "10"}, wantField: "Cant"},
		{name: "bad rate", item: dte.LineItem{Quantity: "1", Rate: "10,5"}, wantField: "rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildItems([]dte.LineItem{tt.item}, 0)
			require.ErrorIs(t, err, ErrFieldFormat)

			var ffe *FieldFormatError
			require.ErrorAs(t, err, &ffe)
			require.Equal(t, tt.wantField, ffe.Field)
			require.Equal(t, 1, ffe.Row)
		})
	}
}

func TestItemsHTML(t *testing.T) {
	table, err := BuildItems([]dte.LineItem{{Description: "A & B", Quantity: "1", Rate: "5"}}, 2)
	require.NoError(t, err)

	out := ItemsHTML(table)
	require.True(t, strings.HasPrefix(out, `<table class="items_factura"><thead><tr><th>Item</th><th>Codigo</th>`))
	require.Contains(t, out, "<td>A &amp; B</td>")
	require.Equal(t, 2, strings.Count(out, "<tr><td>"))
	require.True(t, strings.HasSuffix(out, "</tbody></table>"))
}

func TestReferencesHTML(t *testing.T) {
	require.Equal(t, NoReferencesRow, ReferencesHTML(nil))

	out := ReferencesHTML([]dte.Reference{
		{DocType: "801", DocTypeWords: "ORDEN DE COMPRA", Folio: "4500123", Date: "2024-02-28", Reason: "OC"},
		{DocType: "HES", DocTypeWords: "HOJA DE ENTRADA DE SERVICIOS", Folio: "998", Date: "2024-03-01"},
	})

	require.Equal(t,
		"<tbody>"+
			"<tr><td>ORDEN DE COMPRA</td><td>4500123</td><td>2024-02-28</td><td>OC</td></tr>"+
			"<tr><td>HOJA DE ENTRADA DE SERVICIOS</td><td>998</td><td>2024-03-01</td><td></td></tr>"+
			"</tbody>",
		out)
	require.NotContains(t, out, "<table")
	require.NotContains(t, out, "<th>")
	require.NotContains(t, out, "\n")
}

func TestTaxes(t *testing.T) {
	sum, err := SumTaxes(nil)
	require.NoError(t, err)
	require.Zero(t, sum)

	out, err := TaxesHTML(nil)
	require.NoError(t, err)
	require.Empty(t, out)

	entries := []dte.TaxEntry{{Kind: "15", KindWords: "IVA RETENIDO TOTAL", Rate: "19", Amount: "1500"}}
	sum, err = SumTaxes(entries)
	require.NoError(t, err)
	require.Equal(t, int64(1500), sum)

	out, err = TaxesHTML(entries)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Contains(t, out, "<th>Impuesto</th>")
	require.Contains(t, out, "<td>IVA RETENIDO TOTAL</td><td>19%</td><td>1.500</td>")

	_, err = SumTaxes([]dte.TaxEntry{{Amount: "1500.5"}})
	require.ErrorIs(t, err, ErrFieldFormat)
}

func TestThousands(t *testing.T) {
	require.Equal(t, "0", Thousands(0, "."))
	require.Equal(t, "999", Thousands(999, "."))
	require.Equal(t, "3.000", Thousands(3000, "."))
	require.Equal(t, "1.193.570", Thousands(1193570, "."))
	require.Equal(t, "1,193,570", Thousands(1193570, ","))
	require.Equal(t, "-3.000", Thousands(-3000, "."))
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = ParseAmount(" 1193570 ")
	require.NoError(t, err)
	require.Equal(t, int64(1193570), n)

	_, err = ParseAmount("mil")
	require.Error(t, err)
}
