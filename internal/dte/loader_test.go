package dte

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestLoadFactura(t *testing.T) {
	inv, err := Load("testdata/factura_33.xml")
	require.NoError(t, err)

	require.Equal(t, "76086428-5", inv.SupplierRUT)
	require.Equal(t, "comercial los andes s.a.", inv.SupplierName)
	require.Equal(t, "PROVIDENCIA", inv.SupplierComuna)
	require.Equal(t, "33", inv.DocType)
	require.Equal(t, "FACTURA ELECTRÓNICA", inv.DocTypeWords)
	require.Equal(t, "FE", inv.DocTypeAbbrev)
	require.Equal(t, "1520", inv.Folio)
	require.Equal(t, "2024-03-05", inv.IssueDate)
	require.Equal(t, "2024-04-04", inv.DueDate)
	require.Equal(t, "CRÉDITO", inv.PaymentFormWords)
	require.Equal(t, "VALPARAÍSO", inv.ReceiverComuna)
	require.Equal(t, "1193570", inv.TotalAmount)

	require.Len(t, inv.Items, 2)
	require.Equal(t, "TAL-001", inv.Items[0].Code)
	require.Equal(t, "3", inv.Items[0].Quantity)
	require.Equal(t, "1000", inv.Items[0].Rate)
	require.Equal(t, "CEMENTO SACO 25 KG", inv.Items[1].Description)
	require.Empty(t, inv.Items[1].Code)

	require.Len(t, inv.References, 2)
	require.Equal(t, "ORDEN DE COMPRA", inv.References[0].DocTypeWords)
	require.Equal(t, "HOJA DE ENTRADA DE SERVICIOS", inv.References[1].DocTypeWords)
	require.Equal(t, "ORDEN DE COMPRA", inv.RefDocType)
	require.Equal(t, "4500123", inv.RefFolio)

	require.Len(t, inv.Taxes, 1)
	require.Equal(t, "IVA RETENIDO TOTAL", inv.Taxes[0].KindWords)
	require.Equal(t, "1500", inv.Taxes[0].Amount)

	require.True(t, strings.HasPrefix(inv.Timbre, `<TED version="1.0"><DD><RE>76086428-5</RE>`))
	require.True(t, strings.HasSuffix(inv.Timbre, "</TED>"))
	require.NotContains(t, inv.Timbre, "\n")
}

func TestLoadEnvelope(t *testing.T) {
	inv, err := Load("testdata/nota_credito_61.xml")
	require.NoError(t, err)

	require.Equal(t, "61", inv.DocType)
	require.Equal(t, "NCE", inv.DocTypeAbbrev)
	require.Equal(t, "88", inv.Folio)
	// No FchVenc: due on issue.
	require.Equal(t, "2024-05-10", inv.DueDate)
	require.Empty(t, inv.Taxes)
	require.Equal(t, "FACTURA ELECTRÓNICA", inv.References[0].DocTypeWords)
}

func TestDecodeLatin1(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>
<DTE><Documento><Encabezado>
<IdDoc><TipoDTE>33</TipoDTE><Folio>7</Folio><FchEmis>2024-01-15</FchEmis></IdDoc>
<Emisor><RUTEmisor>11111111-1</RUTEmisor><RznSoc>PANADERÍA ÑUÑOA</RznSoc><CmnaOrigen>ÑUÑOA</CmnaOrigen></Emisor>
</Encabezado></Documento></DTE>`

	latin1, err := charmap.ISO8859_1.NewEncoder().String(doc)
	require.NoError(t, err)

	inv, err := Decode(strings.NewReader(latin1))
	require.NoError(t, err)
	require.Equal(t, "PANADERÍA ÑUÑOA", inv.SupplierName)
	require.Equal(t, "ÑUÑOA", inv.SupplierComuna)
	require.Empty(t, inv.Timbre)
}

func TestDecodeBoletaEmitterFields(t *testing.T) {
	doc := `<DTE><Documento><Encabezado>
<IdDoc><TipoDTE>39</TipoDTE><Folio>10</Folio><FchEmis>2024-01-15</FchEmis></IdDoc>
<Emisor><RUTEmisor>11111111-1</RUTEmisor><RznSocEmisor>KIOSCO LA ESQUINA</RznSocEmisor><GiroEmisor>ALMACEN</GiroEmisor></Emisor>
</Encabezado></Documento></DTE>`

	inv, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, "KIOSCO LA ESQUINA", inv.SupplierName)
	require.Equal(t, "ALMACEN", inv.SupplierActivity)
	require.Equal(t, "BE", inv.DocTypeAbbrev)
}

func TestDecodeNoDocument(t *testing.T) {
	_, err := Decode(strings.NewReader(`<EnvioDTE><SetDTE/></EnvioDTE>`))
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestPurchaseOrderFolio(t *testing.T) {
	tests := []struct {
		name   string
		refs   []Reference
		want   string
		wantOK bool
	}{
		{
			name:   "single purchase order",
			refs:   []Reference{{DocType: "801", Folio: "123"}},
			want:   "123",
			wantOK: true,
		},
		{
			name:   "empty collection",
			refs:   nil,
			wantOK: false,
		},
		{
			name:   "no purchase order",
			refs:   []Reference{{DocType: "33", Folio: "9"}, {DocType: "HES", Folio: "10"}},
			wantOK: false,
		},
		{
			name:   "first match wins",
			refs:   []Reference{{DocType: "33", Folio: "1"}, {DocType: "801", Folio: "2"}, {DocType: "801", Folio: "3"}},
			want:   "2",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PurchaseOrderFolio(tt.refs)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogFallbacks(t *testing.T) {
	require.Equal(t, "999", DocTypeWords("999"))
	require.Equal(t, "DTE999", DocTypeAbbrev("999"))
	require.False(t, KnownDocType("999"))
	require.True(t, KnownDocType(" 33 "))
	require.Equal(t, "IMPUESTO 99", TaxKindWords("99"))
	require.Empty(t, PaymentFormWords(""))
}
