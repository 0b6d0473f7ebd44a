package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<!DOCTYPE html><html><head><title>x</title></head><body>
<h1>Comercial Los Andes</h1>
<p>Señor(es): <strong>CONSTRUCTORA DEL PACÍFICO</strong></p>
<table class="items_factura"><thead><tr><th>Item</th><th>Descripcion</th><th>Total</th></tr></thead>
<tbody><tr><td>1</td><td>TALADRO PERCUTOR 800W</td><td>3.000</td></tr>
<tr><td colspan='3'>No hay referencias</td></tr></tbody></table>
<img src="barcode.svg" width="300">
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><path d="M30,1h40l29,29v40l-29,29h-40l-29-29v-40z" stroke="#000" fill="none"/></svg>
</body></html>`

const sampleSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="60" height="20" viewBox="0 0 60 20">
<g fill="#000">
<rect x="0" y="0" width="10" height="20"/>
<rect x="20" y="0" width="5" height="20"/>
</g>
</svg>`

func TestWriteProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	err := NewEmitter(Options{}).Write(&buf, Document{
		HTML:       sampleHTML,
		Stylesheet: "body { font-size: 9pt; } h1 { font-size: 14pt; color: #aa2233; }",
		Assets:     map[string][]byte{"barcode.svg": []byte(sampleSVG)},
		Title:      "FACTURA ELECTRÓNICA 1520",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestEmitWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "barcode.svg"), []byte(sampleSVG), 0644))

	path := filepath.Join(dir, "out", "pdf", "doc.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	err := NewEmitter(DefaultOptions()).Emit(Document{HTML: sampleHTML, BaseDir: dir}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestWriteManyRowsPaginates(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("<table>")
	for i := 0; i < 200; i++ {
		body.WriteString("<tr><td>fila</td><td>123</td></tr>")
	}
	body.WriteString("</table>")

	var buf bytes.Buffer
	require.NoError(t, NewEmitter(DefaultOptions()).Write(&buf, Document{HTML: body.String()}))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestOutputPath(t *testing.T) {
	inv := &dte.ParsedInvoice{
		IssueDate:     "2024-03-05",
		DocTypeAbbrev: "FE",
		SupplierName:  "comercial los andes s.a.",
		Folio:         "1520",
	}
	require.Equal(t,
		filepath.Join("output", "pdf", "20240305 FE Comercial Los Andes SA 1520.pdf"),
		OutputPath(filepath.Join("output", "pdf"), inv))

	inv.SupplierName = "IMPORTADORA A/B LTDA."
	require.Equal(t, "20240305 FE Importadora A-B Ltda 1520.pdf", filepath.Base(OutputPath("out", inv)))
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"comercial los andes s.a.": "Comercial Los Andes S.A.",
		"SERVICIOS NORTE SPA":      "Servicios Norte Spa",
		"o'higgins ltda":           "O'Higgins Ltda",
		"ñandú 2 ejes":             "Ñandú 2 Ejes",
		"":                         "",
	}
	for in, want := range tests {
		require.Equal(t, want, TitleCase(in), in)
	}
}

func TestParseStylesheet(t *testing.T) {
	sheet := ParseStylesheet(`
@page { size: letter; margin: 12mm; }
/* base */
body { font-family: Arial, sans-serif; font-size: 9pt; color: #222; }
h1, h2 { font-size: 14pt; }
table.items_factura th { background: #eeeeee; font-weight: 700; }
.palabras { font-size: 1.5em; text-align: right; }
`)

	base := style{family: "Helvetica", size: 10}
	body := sheet.compute(base, "body", "")
	require.Equal(t, "Helvetica", body.family)
	require.Equal(t, 9.0, body.size)
	require.Equal(t, rgb{0x22, 0x22, 0x22}, body.color)

	h2 := sheet.compute(body, "h2", "")
	require.Equal(t, 14.0, h2.size)
	require.True(t, h2.bold)

	th := sheet.compute(body, "th", "")
	require.NotNil(t, th.fill)
	require.Equal(t, rgb{0xee, 0xee, 0xee}, *th.fill)

	p := sheet.compute(body, "p", "palabras")
	require.Equal(t, 13.5, p.size)
	require.Equal(t, "R", p.align)

	plain := sheet.compute(body, "p", "")
	require.Equal(t, 9.0, plain.size)
	require.Nil(t, plain.fill)
}

func TestParseSVG(t *testing.T) {
	img, err := parseSVG([]byte(sampleSVG))
	require.NoError(t, err)
	require.Equal(t, 60.0, img.width)
	require.Equal(t, 20.0, img.height)
	require.Len(t, img.shapes, 2)
	require.True(t, img.shapes[0].rect)
	require.Equal(t, "#000", img.shapes[1].fill)
	require.Equal(t, 5.0, img.shapes[1].w)

	_, err = parseSVG([]byte(`<svg><rect width="1" height="1"/></svg>`))
	require.ErrorIs(t, err, errNoExtent)
}
