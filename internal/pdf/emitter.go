// =============================================================================
// DTE to PDF Converter - PDF Emitter
// =============================================================================
//
// This module rasterizes the rendered invoice HTML into a PDF file.
//
// LAYOUT MODEL:
//   The emitter walks the HTML tree (golang.org/x/net/html) and lays it out
//   with gofpdf in a single top-to-bottom flow:
//
//   - block elements (div, p, h1..h6, li, ...) start on a new line
//   - inline text flows and wraps at the right margin
//   - tables are drawn as bordered grids, colspan is honoured
//   - <img src="*.svg"> and inline <svg> are drawn as vector shapes
//
//   Fonts, sizes and colors come from the stylesheet. Only the PDF core
//   fonts are used, so text is translated to cp1252 before drawing.
//
// =============================================================================

package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
)

// pxToMM converts CSS pixels (96 per inch) to millimetres.
const pxToMM = 25.4 / 96

// Document is everything needed to produce one PDF.
type Document struct {
	// HTML is the rendered invoice.
	HTML string

	// Stylesheet is the CSS source applied to HTML.
	Stylesheet string

	// Assets resolves image sources before the filesystem is consulted,
	// keyed by the src attribute ("barcode.svg").
	Assets map[string][]byte

	// BaseDir resolves relative image sources not found in Assets.
	BaseDir string

	// Title is stored in the PDF metadata.
	Title string
}

// Options configures page geometry.
type Options struct {
	// PageSize is a gofpdf size name ("Letter", "A4", "Legal").
	PageSize string

	// Margin is the page margin in millimetres.
	Margin float64

	// FontSize is the default body size in points.
	FontSize float64

	// CreationDate is stamped into the PDF; the zero value leaves gofpdf's
	// default (the current time).
	CreationDate time.Time
}

// DefaultOptions returns Letter pages with 12 mm margins.
func DefaultOptions() Options {
	return Options{PageSize: "Letter", Margin: 12, FontSize: 9}
}

// Emitter writes Documents as PDF.
type Emitter struct {
	opts Options
}

// NewEmitter creates an emitter, filling unset options with defaults.
func NewEmitter(opts Options) *Emitter {
	def := DefaultOptions()
	if opts.PageSize == "" {
		opts.PageSize = def.PageSize
	}
	if opts.Margin <= 0 {
		opts.Margin = def.Margin
	}
	if opts.FontSize <= 0 {
		opts.FontSize = def.FontSize
	}
	return &Emitter{opts: opts}
}

// Emit writes doc to path, creating the parent directory and replacing any
// existing file.
func (e *Emitter) Emit(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := e.Write(&buf, doc); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// Write rasterizes doc and writes the PDF bytes to w.
func (e *Emitter) Write(w io.Writer, doc Document) error {
	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	pdf := gofpdf.New("P", "mm", e.opts.PageSize, "")
	pdf.SetMargins(e.opts.Margin, e.opts.Margin, e.opts.Margin)
	pdf.SetAutoPageBreak(true, e.opts.Margin)
	pdf.SetCreator("dte2pdf", false)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	if !e.opts.CreationDate.IsZero() {
		pdf.SetCreationDate(e.opts.CreationDate)
	}
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	l := &layout{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		css:    ParseStylesheet(doc.Stylesheet),
		doc:    doc,
		left:   e.opts.Margin,
		right:  pageW - e.opts.Margin,
		bottom: pageH - e.opts.Margin,
		top:    e.opts.Margin,
	}

	base := style{family: "Helvetica", size: e.opts.FontSize}
	l.walk(root, base)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to produce PDF: %w", err)
	}
	return nil
}

// =============================================================================
// LAYOUT
// =============================================================================

type layout struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	css *Stylesheet
	doc Document

	left, right, top, bottom float64
}

var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "section": true,
	"header": true, "footer": true, "article": true, "ul": true, "ol": true,
	"li": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "address": true, "blockquote": true,
}

var skippedTags = map[string]bool{
	"head": true, "title": true, "style": true, "script": true,
	"meta": true, "link": true, "template": true,
}

func (l *layout) walk(n *html.Node, st style) {
	switch n.Type {
	case html.DocumentNode:
		l.children(n, st)

	case html.TextNode:
		text := collapse(n.Data)
		if strings.TrimSpace(text) == "" {
			return
		}
		if l.atLineStart() {
			text = strings.TrimLeft(text, " ")
		}
		l.setFont(st)
		l.pdf.Write(lineHeight(st), l.tr(text))

	case html.ElementNode:
		tag := n.Data
		if skippedTags[tag] {
			return
		}
		child := l.css.compute(st, tag, attr(n, "class"))

		switch tag {
		case "br":
			l.pdf.Ln(lineHeight(st))
		case "hr":
			l.newLine(st)
			y := l.pdf.GetY()
			l.pdf.Line(l.left, y, l.right, y)
			l.pdf.Ln(1)
		case "table":
			l.newLine(st)
			l.table(n, child)
		case "img":
			l.image(n)
		case "svg":
			var buf bytes.Buffer
			if err := html.Render(&buf, n); err == nil {
				l.placeSVG(buf.Bytes(), attr(n, "width"), attr(n, "height"))
			}
		default:
			if !blockTags[tag] {
				l.children(n, child)
				return
			}
			l.newLine(st)
			l.children(n, child)
			l.newLine(child)
			if tag == "p" || headingSizes[tag] > 0 {
				l.pdf.Ln(1)
			}
		}
	}
}

func (l *layout) children(n *html.Node, st style) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(c, st)
	}
}

func (l *layout) atLineStart() bool {
	return l.pdf.GetX() <= l.left+0.01
}

// newLine ends the current line if anything was written on it.
func (l *layout) newLine(st style) {
	if !l.atLineStart() {
		l.pdf.Ln(lineHeight(st))
	}
}

func (l *layout) setFont(st style) {
	l.pdf.SetFont(st.family, st.fontStyle(), st.size)
	l.pdf.SetTextColor(st.color.r, st.color.g, st.color.b)
}

// ensureSpace starts a new page when h millimetres do not fit.
func (l *layout) ensureSpace(h float64) {
	if l.pdf.GetY()+h > l.bottom {
		l.pdf.AddPage()
	}
}

// =============================================================================
// TABLES
// =============================================================================

type tableCell struct {
	text string
	span int
	st   style
}

func (l *layout) table(n *html.Node, st style) {
	var rows [][]tableCell
	l.collectRows(n, st, &rows)

	cols := 0
	for _, row := range rows {
		width := 0
		for _, cell := range row {
			width += cell.span
		}
		cols = max(cols, width)
	}
	if cols == 0 {
		return
	}

	widths := l.columnWidths(rows, cols)

	for _, row := range rows {
		l.drawRow(row, widths)
	}
	l.pdf.SetXY(l.left, l.pdf.GetY()+1)
}

// collectRows gathers the rows of a table without entering nested tables.
func (l *layout) collectRows(n *html.Node, st style, rows *[][]tableCell) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		child := l.css.compute(st, c.Data, attr(c, "class"))
		switch c.Data {
		case "tr":
			var row []tableCell
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
					continue
				}
				cellStyle := l.css.compute(child, cell.Data, attr(cell, "class"))
				if hasBold(cell) {
					cellStyle.bold = true
				}
				span, err := strconv.Atoi(attr(cell, "colspan"))
				if err != nil || span < 1 {
					span = 1
				}
				row = append(row, tableCell{
					text: strings.TrimSpace(collapse(textContent(cell))),
					span: span,
					st:   cellStyle,
				})
			}
			*rows = append(*rows, row)
		case "thead", "tbody", "tfoot":
			l.collectRows(c, child, rows)
		}
	}
}

// columnWidths sizes columns by their widest single-span cell, then scales
// the result to the content width.
func (l *layout) columnWidths(rows [][]tableCell, cols int) []float64 {
	const minWidth = 8.0

	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = minWidth
	}
	for _, row := range rows {
		col := 0
		for _, cell := range row {
			if cell.span == 1 && col < cols {
				l.setFont(cell.st)
				widths[col] = max(widths[col], l.pdf.GetStringWidth(l.tr(cell.text))+4)
			}
			col += cell.span
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	scale := (l.right - l.left) / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func (l *layout) drawRow(row []tableCell, widths []float64) {
	cellWidths := make([]float64, 0, len(row))
	col := 0
	for _, cell := range row {
		w := 0.0
		for i := col; i < col+cell.span && i < len(widths); i++ {
			w += widths[i]
		}
		cellWidths = append(cellWidths, w)
		col += cell.span
	}
	// Pad short rows so the grid stays closed.
	for ; col < len(widths); col++ {
		row = append(row, tableCell{span: 1, st: style{family: "Helvetica", size: 9}})
		cellWidths = append(cellWidths, widths[col])
	}

	height := 0.0
	for i, cell := range row {
		l.setFont(cell.st)
		lines := len(l.pdf.SplitLines([]byte(l.tr(cell.text)), cellWidths[i]))
		height = max(height, float64(max(lines, 1))*lineHeight(cell.st))
	}

	l.ensureSpace(height)
	x, y := l.left, l.pdf.GetY()

	for i, cell := range row {
		w := cellWidths[i]
		if cell.st.fill != nil {
			l.pdf.SetFillColor(cell.st.fill.r, cell.st.fill.g, cell.st.fill.b)
			l.pdf.Rect(x, y, w, height, "FD")
		} else {
			l.pdf.Rect(x, y, w, height, "D")
		}

		l.setFont(cell.st)
		l.pdf.SetXY(x, y)
		align := cell.st.align
		if align == "" {
			align = "L"
		}
		l.pdf.MultiCell(w, lineHeight(cell.st), l.tr(cell.text), "", align, false)
		x += w
	}

	l.pdf.SetXY(l.left, y+height)
}

// =============================================================================
// IMAGES
// =============================================================================

func (l *layout) image(n *html.Node) {
	src := attr(n, "src")
	data, err := l.asset(src)
	if err != nil {
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(src), "."))
	switch ext {
	case "svg":
		l.placeSVG(data, attr(n, "width"), attr(n, "height"))
	case "png", "jpg", "jpeg", "gif":
		opts := gofpdf.ImageOptions{ImageType: ext, ReadDpi: true}
		info := l.pdf.RegisterImageOptionsReader(src, opts, bytes.NewReader(data))
		if info == nil {
			return
		}
		w := length(attr(n, "width")) * pxToMM
		h := length(attr(n, "height")) * pxToMM
		if w <= 0 && h <= 0 {
			w = info.Width()
		}
		l.newLine(style{size: 9})
		l.ensureSpace(max(h, 10))
		y := l.pdf.GetY()
		l.pdf.ImageOptions(src, l.left, y, w, h, true, opts, 0, "")
		l.pdf.SetX(l.left)
	}
}

// asset looks src up in the in-memory assets, then under BaseDir.
func (l *layout) asset(src string) ([]byte, error) {
	if data, ok := l.doc.Assets[src]; ok {
		return data, nil
	}
	if filepath.IsAbs(src) {
		return os.ReadFile(src)
	}
	return os.ReadFile(filepath.Join(l.doc.BaseDir, src))
}

// placeSVG draws an SVG on its own line. Width and height attributes are
// CSS pixels; missing ones follow the image's aspect ratio.
func (l *layout) placeSVG(data []byte, width, height string) {
	img, err := parseSVG(data)
	if err != nil {
		return
	}

	w := length(width) * pxToMM
	h := length(height) * pxToMM
	switch {
	case w <= 0 && h <= 0:
		w, h = img.width*pxToMM, img.height*pxToMM
	case w <= 0:
		w = h * img.width / img.height
	case h <= 0:
		h = w * img.height / img.width
	}
	if avail := l.right - l.left; w > avail {
		h *= avail / w
		w = avail
	}

	l.newLine(style{size: 9})
	l.ensureSpace(h)
	x, y := l.left, l.pdf.GetY()
	img.draw(l.pdf, x, y, w, h)
	l.pdf.SetXY(l.left, y+h)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// lineHeight returns the line advance in millimetres for a style.
func lineHeight(st style) float64 {
	return st.size * 0.3528 * 1.25
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func hasBold(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "strong" || c.Data == "b") {
			return true
		}
		if hasBold(c) {
			return true
		}
	}
	return false
}

// collapse folds whitespace runs into single spaces, as browsers do for
// normal text.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
