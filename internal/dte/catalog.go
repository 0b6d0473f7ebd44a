package dte

import "strings"

// documentType holds the display forms of a SII document type code.
type documentType struct {
	Words  string
	Abbrev string
}

// documentTypes covers the DTE codes plus the non-DTE codes that show up
// as reference types (purchase orders, service entry sheets, ...).
var documentTypes = map[string]documentType{
	"29":  {"FACTURA DE INICIO", "FI"},
	"30":  {"FACTURA", "F"},
	"32":  {"FACTURA NO AFECTA O EXENTA", "FEX"},
	"33":  {"FACTURA ELECTRÓNICA", "FE"},
	"34":  {"FACTURA NO AFECTA O EXENTA ELECTRÓNICA", "FEE"},
	"35":  {"BOLETA", "B"},
	"38":  {"BOLETA EXENTA", "BEX"},
	"39":  {"BOLETA ELECTRÓNICA", "BE"},
	"41":  {"BOLETA EXENTA ELECTRÓNICA", "BEE"},
	"43":  {"LIQUIDACIÓN FACTURA ELECTRÓNICA", "LFE"},
	"45":  {"FACTURA DE COMPRA", "FC"},
	"46":  {"FACTURA DE COMPRA ELECTRÓNICA", "FCE"},
	"50":  {"GUÍA DE DESPACHO", "GD"},
	"52":  {"GUÍA DE DESPACHO ELECTRÓNICA", "GDE"},
	"55":  {"NOTA DE DÉBITO", "ND"},
	"56":  {"NOTA DE DÉBITO ELECTRÓNICA", "NDE"},
	"60":  {"NOTA DE CRÉDITO", "NC"},
	"61":  {"NOTA DE CRÉDITO ELECTRÓNICA", "NCE"},
	"110": {"FACTURA DE EXPORTACIÓN ELECTRÓNICA", "FEXE"},
	"111": {"NOTA DE DÉBITO DE EXPORTACIÓN ELECTRÓNICA", "NDEXE"},
	"112": {"NOTA DE CRÉDITO DE EXPORTACIÓN ELECTRÓNICA", "NCEXE"},
	"801": {"ORDEN DE COMPRA", "OC"},
	"802": {"NOTA DE PEDIDO", "NP"},
	"803": {"CONTRATO", "CONT"},
	"804": {"RESOLUCIÓN", "RES"},
	"805": {"PROCESO CHILECOMPRA", "PCC"},
	"806": {"FICHA CHILECOMPRA", "FCC"},
	"807": {"DUS", "DUS"},
	"808": {"B/L (CONOCIMIENTO DE EMBARQUE)", "BL"},
	"809": {"AWB (AIR WILL BILL)", "AWB"},
	"810": {"MIC/DTA", "MIC"},
	"811": {"CARTA DE PORTE", "CP"},
	"812": {"RESOLUCIÓN DEL SNA", "SNA"},
	"813": {"PASAPORTE", "PAS"},
	"814": {"CERTIFICADO DE DEPÓSITO BOLSA PROD. CHILE", "CDB"},
	"815": {"VALE DE PRENDA BOLSA PROD. CHILE", "VPB"},
	"HES": {"HOJA DE ENTRADA DE SERVICIOS", "HES"},
	"HEM": {"HOJA DE ENTRADA DE MATERIALES", "HEM"},
	"SET": {"SET DE PRUEBAS", "SET"},
}

var paymentForms = map[string]string{
	"1": "CONTADO",
	"2": "CRÉDITO",
	"3": "SIN COSTO (ENTREGA GRATUITA)",
}

var taxKinds = map[string]string{
	"14":  "IVA DE MARGEN DE COMERCIALIZACIÓN",
	"15":  "IVA RETENIDO TOTAL",
	"17":  "IVA ANTICIPADO FAENAMIENTO CARNE",
	"18":  "IVA ANTICIPADO CARNE",
	"19":  "IVA ANTICIPADO HARINA",
	"23":  "IMPUESTO ADICIONAL ART. 37 A, B, C",
	"24":  "LICORES, PISCO, DESTILADOS",
	"25":  "VINOS",
	"26":  "CERVEZAS Y BEBIDAS ALCOHÓLICAS",
	"27":  "BEBIDAS ANALCOHÓLICAS Y MINERALES",
	"271": "BEBIDAS ANALCOHÓLICAS ELEVADO CONTENIDO DE AZÚCAR",
	"28":  "IMPUESTO ESPECÍFICO DIESEL",
	"35":  "IMPUESTO ESPECÍFICO GASOLINAS",
}

// DocTypeWords returns the printed name of a document type code.
// Unknown codes are returned unchanged.
func DocTypeWords(code string) string {
	code = strings.TrimSpace(code)
	if dt, ok := documentTypes[code]; ok {
		return dt.Words
	}
	return code
}

// DocTypeAbbrev returns the short form used in output file names.
func DocTypeAbbrev(code string) string {
	code = strings.TrimSpace(code)
	if dt, ok := documentTypes[code]; ok {
		return dt.Abbrev
	}
	return "DTE" + code
}

// KnownDocType reports whether code is in the catalog.
func KnownDocType(code string) bool {
	_, ok := documentTypes[strings.TrimSpace(code)]
	return ok
}

// PaymentFormWords returns the printed name of a FmaPago code.
func PaymentFormWords(code string) string {
	return paymentForms[strings.TrimSpace(code)]
}

// TaxKindWords returns the printed name of a TipoImp code.
func TaxKindWords(code string) string {
	code = strings.TrimSpace(code)
	if words, ok := taxKinds[code]; ok {
		return words
	}
	return "IMPUESTO " + code
}
