// =============================================================================
// DTE to PDF Converter - Barcode Renderer
// =============================================================================
//
// This module encodes the document's timbre (TED element) as a PDF417
// symbol and stores it as an SVG asset next to the HTML template.
//
// ENCODERS:
//   Timbres made only of text and digit characters are laid out with a
//   fixed number of data columns (11 for SII). Timbres carrying other
//   ISO-8859-1 characters (accented names) need byte compaction, which is
//   only available from the auto-dimensioned encoder; those symbols pick
//   their own column count.
//
// SVG LAYOUT:
//   Every horizontal run of dark modules becomes one <rect>. Consecutive
//   image rows that are identical are merged into a single taller band,
//   which keeps the asset small. A symbol row is Ratio modules tall.
//
//   <svg width="W" height="H" viewBox="0 0 W H">
//     <g fill="#000">
//       <rect x="20" y="20" width="24" height="9"/>
//       ...
//     </g>
//   </svg>
//
// =============================================================================

package barcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	autopdf417 "github.com/boombuler/barcode/pdf417"
	pdf417 "github.com/ruudk/golang-pdf417"
)

var (
	// ErrEncodingCapacityExceeded is returned when the text does not fit
	// in a PDF417 symbol.
	ErrEncodingCapacityExceeded = errors.New("barcode encoding capacity exceeded")

	// ErrEmptyTimbre is returned when there is nothing to encode.
	ErrEmptyTimbre = errors.New("empty timbre text")

	// ErrUnencodable is returned for text outside the ISO-8859-1 range.
	ErrUnencodable = errors.New("timbre contains characters outside ISO-8859-1")

	// ErrInvalidColumns is returned for a column count PDF417 cannot lay out.
	ErrInvalidColumns = errors.New("invalid barcode column count")
)

// maxCodewords is the PDF417 limit on codewords in one symbol, counting
// the length descriptor, padding and error correction.
const maxCodewords = 928

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls the encoded symbol and its SVG rendering.
type Options struct {
	// Columns is the number of data columns of the symbol (1-30).
	// Default: 11
	Columns int

	// SecurityLevel is the PDF417 error correction level (0-8).
	// Default: 2
	SecurityLevel byte

	// Scale is the width of one module in SVG units.
	// Default: 3
	Scale float64

	// Ratio is the height of one symbol row in module widths.
	// Default: 3
	Ratio float64

	// Padding is the quiet zone around the symbol in SVG units.
	// Default: 20
	Padding float64
}

// DefaultOptions returns the options used for SII timbres.
func DefaultOptions() Options {
	return Options{
		Columns:       11,
		SecurityLevel: 2,
		Scale:         3,
		Ratio:         3,
		Padding:       20,
	}
}

func (o *Options) applyDefaults() {
	if o.Columns == 0 {
		o.Columns = 11
	}
	if o.Scale <= 0 {
		o.Scale = 3
	}
	if o.Ratio <= 0 {
		o.Ratio = 3
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer writes the barcode asset to a fixed path. The asset is
// overwritten on every call; writes are serialized so concurrent callers
// never leave a partially written file behind.
type Renderer struct {
	path string
	opts Options
	mu   sync.Mutex
}

// NewRenderer creates a Renderer that writes to path.
func NewRenderer(path string, opts Options) *Renderer {
	opts.applyDefaults()
	return &Renderer{path: path, opts: opts}
}

// Path returns the asset location.
func (r *Renderer) Path() string {
	return r.path
}

// Render encodes timbre, stores the SVG asset and returns its bytes.
func (r *Renderer) Render(timbre string) ([]byte, error) {
	svg, err := EncodeSVG(timbre, r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeAtomic(r.path, svg); err != nil {
		return nil, fmt.Errorf("failed to write barcode asset: %w", err)
	}
	return svg, nil
}

// Encode returns the SVG for timbre without touching the asset file.
func (r *Renderer) Encode(timbre string) ([]byte, error) {
	return EncodeSVG(timbre, r.opts)
}

// EncodeSVG encodes text as PDF417 and returns the SVG document.
func EncodeSVG(text string, opts Options) ([]byte, error) {
	opts.applyDefaults()

	img, rowPixels, err := encodeSymbol(text, opts)
	if err != nil {
		return nil, err
	}
	return renderSVG(img, rowPixels, opts), nil
}

// encodeSymbol returns the symbol image and how many image rows make up
// one symbol row.
func encodeSymbol(text string, opts Options) (image.Image, int, error) {
	if text == "" {
		return nil, 0, ErrEmptyTimbre
	}
	for _, r := range text {
		if r > 0xFF {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnencodable, r)
		}
	}
	if opts.Columns < pdf417.MIN_COLUMNS || opts.Columns > pdf417.MAX_COLUMNS {
		return nil, 0, fmt.Errorf("%w: %d (want %d-%d)",
			ErrInvalidColumns, opts.Columns, pdf417.MIN_COLUMNS, pdf417.MAX_COLUMNS)
	}
	if opts.SecurityLevel > pdf417.MAX_SECURITY_LEVEL {
		return nil, 0, fmt.Errorf("invalid security level %d", opts.SecurityLevel)
	}

	if compactable(text) {
		code := pdf417.Encode(text, opts.Columns, int(opts.SecurityLevel))
		if code.Rows > pdf417.MAX_ROWS || len(code.CodeWords) > maxCodewords {
			return nil, 0, fmt.Errorf("%w: %d bytes need %d codewords in %d columns",
				ErrEncodingCapacityExceeded, len(text), len(code.CodeWords), opts.Columns)
		}
		if code.Rows >= pdf417.MIN_ROWS {
			return code, 1, nil
		}
	}

	// Byte compaction, or a text too short for three rows at this width.
	code, err := autopdf417.Encode(text, opts.SecurityLevel)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %d bytes: %v", ErrEncodingCapacityExceeded, len(text), err)
	}
	return code, 2, nil
}

// compactable reports whether every byte of text has a text or numeric
// compaction code.
func compactable(text string) bool {
	enc := pdf417.CreateTextEncoder()
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if !enc.CanEncode(string(c)) {
			return false
		}
	}
	return true
}

// =============================================================================
// SVG RENDERING
// =============================================================================

// renderSVG walks the symbol image row by row. rowPixels image rows
// make up one symbol row.
func renderSVG(img image.Image, rowPixels int, opts Options) []byte {
	bounds := img.Bounds()
	cols := bounds.Dx()
	rowHeight := opts.Scale * opts.Ratio / float64(rowPixels)

	width := float64(cols)*opts.Scale + 2*opts.Padding
	height := float64(bounds.Dy())*rowHeight + 2*opts.Padding

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(width), num(height), num(width), num(height))
	buf.WriteString("\n<g fill=\"#000\">\n")

	var prev []bool
	bandStart := bounds.Min.Y
	flush := func(row []bool, start, end int) {
		if row == nil {
			return
		}
		y := opts.Padding + float64(start-bounds.Min.Y)*rowHeight
		h := float64(end-start) * rowHeight
		for x := 0; x < cols; {
			if !row[x] {
				x++
				continue
			}
			run := x
			for run < cols && row[run] {
				run++
			}
			fmt.Fprintf(&buf, `<rect x="%s" y="%s" width="%s" height="%s"/>`+"\n",
				num(opts.Padding+float64(x)*opts.Scale), num(y),
				num(float64(run-x)*opts.Scale), num(h))
			x = run
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := make([]bool, cols)
		for x := 0; x < cols; x++ {
			row[x] = isDark(img.At(bounds.Min.X+x, y))
		}
		if prev != nil && sameRow(prev, row) {
			continue
		}
		flush(prev, bandStart, y)
		prev = row
		bandStart = y
	}
	flush(prev, bandStart, bounds.Max.Y)

	buf.WriteString("</g>\n</svg>\n")
	return buf.Bytes()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r+g+b < 3*0x8000
}

func sameRow(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// writeAtomic writes data to a temporary file and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".barcode-*.svg")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
