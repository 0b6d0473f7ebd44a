// =============================================================================
// DTE to PDF Converter - Parsed Document Types
// =============================================================================
//
// This file declares the read-only record produced by the loader. Every
// field the rest of the pipeline consumes is declared up front; nothing is
// looked up dynamically on the parsed XML.
//
// LIFETIME:
//   A ParsedInvoice is built once per input file, never mutated, and
//   discarded once the PDF (or dataset row) has been produced.
//
// =============================================================================

package dte

// PurchaseOrderType is the reference type code that identifies the
// originating purchase order ("Orden de Compra").
const PurchaseOrderType = "801"

// =============================================================================
// DOCUMENT
// =============================================================================

// ParsedInvoice is the flattened view of one DTE "Documento".
type ParsedInvoice struct {
	// Supplier (Emisor).
	SupplierRUT      string
	SupplierName     string
	SupplierActivity string
	SupplierAddress  string
	SupplierComuna   string
	SupplierCity     string

	// Document identity (IdDoc).
	DocType       string
	DocTypeWords  string
	DocTypeAbbrev string
	Folio         string
	IssueDate     string
	DueDate       string
	PaymentForm   string
	// PaymentFormWords is the human readable form of PaymentForm
	// ("CONTADO", "CRÉDITO", ...). Empty when the document has none.
	PaymentFormWords string

	// Receiver (Receptor).
	ReceiverName     string
	ReceiverActivity string
	ReceiverContact  string
	ReceiverRUT      string
	ReceiverAddress  string
	ReceiverCity     string
	ReceiverComuna   string

	// Totals, kept as the raw integer text found in the XML.
	NetAmount    string
	VATAmount    string
	ExemptAmount string
	TotalAmount  string

	// Timbre is the compacted TED element, the text encoded in the PDF417
	// barcode printed at the bottom of the invoice.
	Timbre string

	Items      []LineItem
	References []Reference
	Taxes      []TaxEntry

	// First reference, mirrored for the template header block.
	RefDocType string
	RefFolio   string
	RefDate    string
}

// LineItem is one "Detalle" entry. Quantity and Rate are left as text;
// coercion happens where the numbers are used.
type LineItem struct {
	Line        int    `json:"NroLinDet"`
	Code        string `json:"Codigo"`
	Name        string `json:"Nombre"`
	Description string `json:"Descripcion"`
	Quantity    string `json:"Cant"`
	Unit        string `json:"Unidad,omitempty"`
	Rate        string `json:"rate"`
	Amount      string `json:"Monto"`
}

// Reference is one "Referencia" entry.
type Reference struct {
	DocType      string `json:"tipo_doc_referencia"`
	DocTypeWords string `json:"tipo_doc_referencia_palabras"`
	Folio        string `json:"folio_referencia"`
	Date         string `json:"fecha_referencia"`
	Reason       string `json:"razon_referencia"`
}

// TaxEntry is one "ImptoReten" entry of the totals block.
type TaxEntry struct {
	Kind      string `json:"tipo"`
	KindWords string `json:"impuesto"`
	Rate      string `json:"tasa"`
	Amount    string `json:"monto"`
}

// PurchaseOrderFolio returns the folio of the first reference whose type
// is PurchaseOrderType. The boolean is false when no such reference exists.
func PurchaseOrderFolio(refs []Reference) (string, bool) {
	for _, ref := range refs {
		if ref.DocType != PurchaseOrderType {
			continue
		}
		return ref.Folio, true
	}
	return "", false
}
