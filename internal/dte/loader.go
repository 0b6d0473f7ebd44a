// =============================================================================
// DTE to PDF Converter - Document Loader
// =============================================================================
//
// This module reads a DTE XML file issued under the SII schema and flattens
// the first "Documento" it finds into a ParsedInvoice.
//
// ACCEPTED INPUTS:
//   <DTE><Documento>...</Documento></DTE>                     (single DTE)
//   <EnvioDTE><SetDTE><DTE><Documento>...                      (envelope)
//   <DTE><Exportaciones>...</Exportaciones></DTE>              (export DTE)
//
// ENCODING:
//   SII files are usually ISO-8859-1. The decoder resolves the declared
//   charset through golang.org/x/net/html/charset, so UTF-8 files work too.
//
// =============================================================================

package dte

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNoDocument is returned when the XML holds no Documento element.
var ErrNoDocument = errors.New("no Documento element found")

// documentElements are the element names that carry a document body.
var documentElements = map[string]bool{
	"Documento":     true,
	"Exportaciones": true,
	"Liquidacion":   true,
}

// =============================================================================
// XML MAPPING
// =============================================================================

type xmlDocumento struct {
	Encabezado struct {
		IdDoc struct {
			TipoDTE string `xml:"TipoDTE"`
			Folio   string `xml:"Folio"`
			FchEmis string `xml:"FchEmis"`
			FmaPago string `xml:"FmaPago"`
			FchVenc string `xml:"FchVenc"`
		} `xml:"IdDoc"`
		Emisor struct {
			RUTEmisor    string `xml:"RUTEmisor"`
			RznSoc       string `xml:"RznSoc"`
			RznSocEmisor string `xml:"RznSocEmisor"`
			GiroEmis     string `xml:"GiroEmis"`
			GiroEmisor   string `xml:"GiroEmisor"`
			DirOrigen    string `xml:"DirOrigen"`
			CmnaOrigen   string `xml:"CmnaOrigen"`
			CiudadOrigen string `xml:"CiudadOrigen"`
		} `xml:"Emisor"`
		Receptor struct {
			RUTRecep    string `xml:"RUTRecep"`
			RznSocRecep string `xml:"RznSocRecep"`
			GiroRecep   string `xml:"GiroRecep"`
			Contacto    string `xml:"Contacto"`
			DirRecep    string `xml:"DirRecep"`
			CmnaRecep   string `xml:"CmnaRecep"`
			CiudadRecep string `xml:"CiudadRecep"`
		} `xml:"Receptor"`
		Totales struct {
			MntNeto    string `xml:"MntNeto"`
			MntExe     string `xml:"MntExe"`
			IVA        string `xml:"IVA"`
			MntTotal   string `xml:"MntTotal"`
			ImptoReten []struct {
				TipoImp  string `xml:"TipoImp"`
				TasaImp  string `xml:"TasaImp"`
				MontoImp string `xml:"MontoImp"`
			} `xml:"ImptoReten"`
		} `xml:"Totales"`
	} `xml:"Encabezado"`
	Detalle []struct {
		NroLinDet string `xml:"NroLinDet"`
		CdgItem   []struct {
			TpoCodigo string `xml:"TpoCodigo"`
			VlrCodigo string `xml:"VlrCodigo"`
		} `xml:"CdgItem"`
		NmbItem   string `xml:"NmbItem"`
		DscItem   string `xml:"DscItem"`
		QtyItem   string `xml:"QtyItem"`
		UnmdItem  string `xml:"UnmdItem"`
		PrcItem   string `xml:"PrcItem"`
		MontoItem string `xml:"MontoItem"`
	} `xml:"Detalle"`
	Referencia []struct {
		TpoDocRef string `xml:"TpoDocRef"`
		FolioRef  string `xml:"FolioRef"`
		FchRef    string `xml:"FchRef"`
		RazonRef  string `xml:"RazonRef"`
	} `xml:"Referencia"`
	TED *struct {
		Version string `xml:"version,attr"`
		Inner   string `xml:",innerxml"`
	} `xml:"TED"`
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// Load opens the XML file at path and parses it.
func Load(path string) (*ParsedInvoice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DTE file: %w", err)
	}
	defer f.Close()

	inv, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return inv, nil
}

// Decode reads XML from r until the first document element and flattens it.
func Decode(r io.Reader) (*ParsedInvoice, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil, ErrNoDocument
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read XML: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || !documentElements[start.Name.Local] {
			continue
		}

		var doc xmlDocumento
		if err := decoder.DecodeElement(&doc, &start); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", start.Name.Local, err)
		}
		return doc.flatten(), nil
	}
}

// flatten copies the XML mapping into a ParsedInvoice, resolving codes to
// their printed names.
func (d *xmlDocumento) flatten() *ParsedInvoice {
	enc := &d.Encabezado
	inv := &ParsedInvoice{
		SupplierRUT:      clean(enc.Emisor.RUTEmisor),
		SupplierName:     firstNonEmpty(enc.Emisor.RznSoc, enc.Emisor.RznSocEmisor),
		SupplierActivity: firstNonEmpty(enc.Emisor.GiroEmis, enc.Emisor.GiroEmisor),
		SupplierAddress:  clean(enc.Emisor.DirOrigen),
		SupplierComuna:   clean(enc.Emisor.CmnaOrigen),
		SupplierCity:     clean(enc.Emisor.CiudadOrigen),

		DocType:     clean(enc.IdDoc.TipoDTE),
		Folio:       clean(enc.IdDoc.Folio),
		IssueDate:   clean(enc.IdDoc.FchEmis),
		DueDate:     clean(enc.IdDoc.FchVenc),
		PaymentForm: clean(enc.IdDoc.FmaPago),

		ReceiverName:     clean(enc.Receptor.RznSocRecep),
		ReceiverActivity: clean(enc.Receptor.GiroRecep),
		ReceiverContact:  clean(enc.Receptor.Contacto),
		ReceiverRUT:      clean(enc.Receptor.RUTRecep),
		ReceiverAddress:  clean(enc.Receptor.DirRecep),
		ReceiverCity:     clean(enc.Receptor.CiudadRecep),
		ReceiverComuna:   clean(enc.Receptor.CmnaRecep),

		NetAmount:    clean(enc.Totales.MntNeto),
		VATAmount:    clean(enc.Totales.IVA),
		ExemptAmount: clean(enc.Totales.MntExe),
		TotalAmount:  clean(enc.Totales.MntTotal),
	}

	inv.DocTypeWords = DocTypeWords(inv.DocType)
	inv.DocTypeAbbrev = DocTypeAbbrev(inv.DocType)
	inv.PaymentFormWords = PaymentFormWords(inv.PaymentForm)

	// Documents without a due date are due on issue.
	if inv.DueDate == "" {
		inv.DueDate = inv.IssueDate
	}

	for i, det := range d.Detalle {
		item := LineItem{
			Line:        i + 1,
			Name:        clean(det.NmbItem),
			Description: clean(det.NmbItem),
			Quantity:    clean(det.QtyItem),
			Unit:        clean(det.UnmdItem),
			Rate:        clean(det.PrcItem),
			Amount:      clean(det.MontoItem),
		}
		if extra := clean(det.DscItem); extra != "" {
			item.Description = strings.TrimSpace(item.Description + " " + extra)
		}
		if len(det.CdgItem) > 0 {
			item.Code = clean(det.CdgItem[0].VlrCodigo)
		}
		inv.Items = append(inv.Items, item)
	}

	for _, ref := range d.Referencia {
		docType := clean(ref.TpoDocRef)
		inv.References = append(inv.References, Reference{
			DocType:      docType,
			DocTypeWords: DocTypeWords(docType),
			Folio:        clean(ref.FolioRef),
			Date:         clean(ref.FchRef),
			Reason:       clean(ref.RazonRef),
		})
	}
	if len(inv.References) > 0 {
		first := inv.References[0]
		inv.RefDocType = first.DocTypeWords
		inv.RefFolio = first.Folio
		inv.RefDate = first.Date
	}

	for _, tax := range enc.Totales.ImptoReten {
		kind := clean(tax.TipoImp)
		inv.Taxes = append(inv.Taxes, TaxEntry{
			Kind:      kind,
			KindWords: TaxKindWords(kind),
			Rate:      clean(tax.TasaImp),
			Amount:    clean(tax.MontoImp),
		})
	}

	if d.TED != nil {
		inv.Timbre = compactTimbre(d.TED.Version, d.TED.Inner)
	}

	return inv
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// interTagSpace matches the indentation between two tags.
var interTagSpace = regexp.MustCompile(`>\s+<`)

// compactTimbre rebuilds the TED element without the whitespace the issuer
// used for indentation; the barcode encodes the compact form.
func compactTimbre(version, inner string) string {
	var b strings.Builder
	b.WriteString("<TED")
	if version != "" {
		b.WriteString(` version="`)
		b.WriteString(version)
		b.WriteString(`"`)
	}
	b.WriteString(">")
	b.WriteString(strings.TrimSpace(inner))
	b.WriteString("</TED>")
	return interTagSpace.ReplaceAllString(b.String(), "><")
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}
