// =============================================================================
// DTE to PDF Converter - Accumulator
// =============================================================================
//
// This module collects one summary row per DTE file into a dataset that can
// be exported for accounting reconciliation.
//
// DATASET SCHEMA (ordered):
//
//   | rut | fecha | folio | montoNeto | referencias_oc | tipoDoc | items | comuna |
//
//   referencias_oc is the folio of the first purchase order reference (type
//   801), absent when the document has none. items is the raw line item
//   collection, serialized as JSON when written to a file.
//
// A Dataset is a value: Append returns a new Dataset and never modifies
// the receiver.
//
// =============================================================================

package accumulator

import (
	"encoding/json"
	"fmt"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
)

// Columns is the dataset schema, in order.
var Columns = []string{"rut", "fecha", "folio", "montoNeto", "referencias_oc", "tipoDoc", "items", "comuna"}

// Row is one accumulated document.
type Row struct {
	RUT       string
	Date      string
	Folio     string
	NetAmount string

	// PurchaseOrder is valid only when HasPurchaseOrder is true.
	PurchaseOrder    string
	HasPurchaseOrder bool

	DocType string
	Items   []dte.LineItem
	Comuna  string
}

// NewRow extracts the accumulated fields from a parsed document.
func NewRow(inv *dte.ParsedInvoice) Row {
	oc, ok := dte.PurchaseOrderFolio(inv.References)
	return Row{
		RUT:              inv.SupplierRUT,
		Date:             inv.IssueDate,
		Folio:            inv.Folio,
		NetAmount:        inv.NetAmount,
		PurchaseOrder:    oc,
		HasPurchaseOrder: ok,
		DocType:          inv.DocType,
		Items:            inv.Items,
		Comuna:           inv.SupplierComuna,
	}
}

// Values returns the row as text cells in Columns order.
func (r Row) Values() ([]string, error) {
	items := r.Items
	if items == nil {
		items = []dte.LineItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}

	return []string{
		r.RUT,
		r.Date,
		r.Folio,
		r.NetAmount,
		r.PurchaseOrder,
		r.DocType,
		string(encoded),
		r.Comuna,
	}, nil
}

// rowFromValues is the inverse of Values. An empty referencias_oc reads as
// absent.
func rowFromValues(values []string) (Row, error) {
	cell := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}

	row := Row{
		RUT:           cell(0),
		Date:          cell(1),
		Folio:         cell(2),
		NetAmount:     cell(3),
		PurchaseOrder: cell(4),
		DocType:       cell(5),
		Comuna:        cell(7),
	}
	row.HasPurchaseOrder = row.PurchaseOrder != ""

	if raw := cell(6); raw != "" {
		if err := json.Unmarshal([]byte(raw), &row.Items); err != nil {
			return Row{}, fmt.Errorf("failed to decode items: %w", err)
		}
	}
	return row, nil
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is an ordered collection of rows under Columns.
type Dataset struct {
	rows []Row
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{}
}

// Columns returns the dataset schema.
func (d *Dataset) Columns() []string {
	return append([]string(nil), Columns...)
}

// Rows returns a copy of the rows in append order.
func (d *Dataset) Rows() []Row {
	if d == nil {
		return nil
	}
	return append([]Row(nil), d.rows...)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Append returns a new dataset holding d's rows followed by rows.
func (d *Dataset) Append(rows ...Row) *Dataset {
	next := make([]Row, 0, d.Len()+len(rows))
	if d != nil {
		next = append(next, d.rows...)
	}
	next = append(next, rows...)
	return &Dataset{rows: next}
}

// AppendFile loads the DTE at path and returns ds with its row appended.
// Appending the same file twice yields two rows.
func AppendFile(ds *Dataset, path string) (*Dataset, error) {
	inv, err := dte.Load(path)
	if err != nil {
		return nil, err
	}
	return ds.Append(NewRow(inv)), nil
}
