package render

import (
	"fmt"
	"html/template"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/numwords"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/tables"
	"golang.org/x/text/language"
)

// Context is the flat placeholder map handed to the template.
type Context map[string]any

// Placeholders lists every key NewContext fills.
var Placeholders = []string{
	"rut", "supplier_name", "supplier_activity", "bill_no", "purchase_invoice_items",
	"tipo_documento", "fecha_emision", "supplier_address_detail", "supplier_address_comuna",
	"supplier_address_city", "receptor_razon_social", "receptor_giro", "receptor_contacto",
	"receptor_rut", "receptor_direccion", "receptor_ciudad", "receptor_comuna",
	"forma_pago_palabras", "fecha_vencimiento", "referencias_table", "impuestos_table",
	"tipo_doc", "folio_referencial", "fecha_referencial", "monto_total_palabras",
	"monto_total", "monto_iva", "monto_exento", "monto_neto",
	"monto_impuesto_y_retenciones", "src_timbre",
}

// Stamp is the tax authority seal printed next to the barcode.
const Stamp = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
	`<path d="M30,1h40l29,29v40l-29,29h-40l-29-29v-40z" stroke="#000" fill="none"/>` +
	`<path d="M31,3h38l28,28v38l-28,28h-38l-28-28v-38z" fill="#a23"/>` +
	`<text x="50" y="68" font-size="48" fill="#FFF" text-anchor="middle">410</text>` +
	`</svg>`

// Options controls locale dependent formatting.
type Options struct {
	// Language is the BCP 47 tag used for the amount in words.
	Language string

	// Locale is the BCP 47 tag that picks the thousands separator.
	Locale string

	// MinRows is the padded height of the items table.
	MinRows int
}

// DefaultOptions returns the Chilean formatting defaults.
func DefaultOptions() Options {
	return Options{Language: "es", Locale: "es-CL", MinRows: tables.MinRows}
}

// NewContext builds the template context for one document.
//
// PARAMETERS:
//   - inv: The parsed document.
//   - opts: Formatting options.
//
// RETURNS:
//   - The filled context.
//   - ErrDateFormat, tables.ErrFieldFormat or numwords.ErrNumberToWords
//     (wrapped) when a field cannot be formatted.
func NewContext(inv *dte.ParsedInvoice, opts Options) (Context, error) {
	if opts.Language == "" {
		opts.Language = "es"
	}
	sep := Separator(opts.Locale)

	items, err := tables.BuildItems(inv.Items, opts.MinRows)
	if err != nil {
		return nil, fmt.Errorf("failed to build items table: %w", err)
	}
	taxesHTML, err := tables.TaxesHTML(inv.Taxes)
	if err != nil {
		return nil, fmt.Errorf("failed to build taxes table: %w", err)
	}
	taxSum, err := tables.SumTaxes(inv.Taxes)
	if err != nil {
		return nil, fmt.Errorf("failed to sum taxes: %w", err)
	}

	issued, err := FormatDate(inv.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("fecha_emision: %w", err)
	}
	due, err := FormatDate(inv.DueDate)
	if err != nil {
		return nil, fmt.Errorf("fecha_vencimiento: %w", err)
	}

	amounts := map[string]string{
		"monto_total":  inv.TotalAmount,
		"monto_iva":    inv.VATAmount,
		"monto_exento": inv.ExemptAmount,
		"monto_neto":   inv.NetAmount,
	}
	ctx := Context{}
	for key, raw := range amounts {
		n, err := tables.ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, &tables.FieldFormatError{Field: key, Value: raw, Row: 1, Err: err})
		}
		ctx[key] = tables.Thousands(n, sep)
	}
	ctx["monto_impuesto_y_retenciones"] = tables.Thousands(taxSum, sep)

	total, _ := tables.ParseAmount(inv.TotalAmount)
	words, err := numwords.Upper(total, opts.Language)
	if err != nil {
		return nil, fmt.Errorf("monto_total_palabras: %w", err)
	}
	ctx["monto_total_palabras"] = words

	// Supplier and document
	ctx["rut"] = inv.SupplierRUT
	ctx["supplier_name"] = inv.SupplierName
	ctx["supplier_activity"] = inv.SupplierActivity
	ctx["bill_no"] = inv.Folio
	ctx["tipo_documento"] = inv.DocTypeWords
	ctx["fecha_emision"] = issued
	ctx["supplier_address_detail"] = inv.SupplierAddress
	ctx["supplier_address_comuna"] = inv.SupplierComuna
	ctx["supplier_address_city"] = inv.SupplierCity

	// Receiver
	ctx["receptor_razon_social"] = inv.ReceiverName
	ctx["receptor_giro"] = inv.ReceiverActivity
	ctx["receptor_contacto"] = inv.ReceiverContact
	ctx["receptor_rut"] = inv.ReceiverRUT
	ctx["receptor_direccion"] = inv.ReceiverAddress
	ctx["receptor_ciudad"] = inv.ReceiverCity
	ctx["receptor_comuna"] = inv.ReceiverComuna
	ctx["forma_pago_palabras"] = inv.PaymentFormWords
	ctx["fecha_vencimiento"] = due

	// References
	ctx["tipo_doc"] = inv.RefDocType
	ctx["folio_referencial"] = inv.RefFolio
	ctx["fecha_referencial"] = inv.RefDate

	// Pre-rendered fragments, trusted markup.
	ctx["purchase_invoice_items"] = template.HTML(tables.ItemsHTML(items))
	ctx["referencias_table"] = template.HTML(tables.ReferencesHTML(inv.References))
	ctx["impuestos_table"] = template.HTML(taxesHTML)
	ctx["src_timbre"] = template.HTML(Stamp)

	return ctx, nil
}

// Separator returns the thousands separator for a locale tag. English,
// Chinese, Japanese and Korean group with ","; everything else uses ".".
func Separator(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "."
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en", "zh", "ja", "ko":
		return ","
	}
	return "."
}
