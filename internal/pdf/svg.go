package pdf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// =============================================================================
// SVG DRAWING
// =============================================================================
//
// Two shapes are supported, which covers the barcode asset and the stamp:
//
//   <rect>  filled with pdf.Rect, the barcode is nothing but rect runs
//   <path>  stroked through gofpdf's basic SVG support
//
// Fill colors are inherited from enclosing <g> elements.
//
// =============================================================================

var errNoExtent = errors.New("svg has neither viewBox nor width/height")

type svgShape struct {
	rect       bool
	x, y, w, h float64
	d          string
	fill       string
	stroke     string
}

type svgImage struct {
	minX, minY    float64
	width, height float64
	shapes        []svgShape
}

// parseSVG reads the viewport and the drawable shapes of an SVG document.
func parseSVG(data []byte) (*svgImage, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	img := &svgImage{}
	fills := []string{"#000"}
	rootSeen := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read svg: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			attrs := attrMap(el.Attr)
			fill := fills[len(fills)-1]
			if f, ok := attrs["fill"]; ok {
				fill = f
			}

			switch el.Name.Local {
			case "svg":
				if !rootSeen {
					rootSeen = true
					img.readViewport(attrs)
				}
				fills = append(fills, fill)
			case "g":
				fills = append(fills, fill)
			case "rect":
				img.shapes = append(img.shapes, svgShape{
					rect: true,
					x:    length(attrs["x"]),
					y:    length(attrs["y"]),
					w:    length(attrs["width"]),
					h:    length(attrs["height"]),
					fill: fill,
				})
			case "path":
				img.shapes = append(img.shapes, svgShape{
					d:      attrs["d"],
					fill:   fill,
					stroke: attrs["stroke"],
				})
			}

		case xml.EndElement:
			if (el.Name.Local == "g" || el.Name.Local == "svg") && len(fills) > 1 {
				fills = fills[:len(fills)-1]
			}
		}
	}

	if img.width <= 0 || img.height <= 0 {
		return nil, errNoExtent
	}
	return img, nil
}

func (img *svgImage) readViewport(attrs map[string]string) {
	if vb := strings.FieldsFunc(attrs["viewBox"], func(r rune) bool { return r == ' ' || r == ',' }); len(vb) == 4 {
		img.minX, img.minY = length(vb[0]), length(vb[1])
		img.width, img.height = length(vb[2]), length(vb[3])
		return
	}
	img.width, img.height = length(attrs["width"]), length(attrs["height"])
}

// draw paints the image into the box at (x, y) with size w x h.
func (img *svgImage) draw(pdf *gofpdf.Fpdf, x, y, w, h float64) {
	sx := w / img.width
	sy := h / img.height

	for _, shape := range img.shapes {
		if shape.rect {
			c, ok := parseColor(shape.fill)
			if !ok || shape.w <= 0 || shape.h <= 0 {
				continue
			}
			pdf.SetFillColor(c.r, c.g, c.b)
			pdf.Rect(x+(shape.x-img.minX)*sx, y+(shape.y-img.minY)*sy, shape.w*sx, shape.h*sy, "F")
			continue
		}

		color := shape.stroke
		if color == "" || color == "none" {
			color = shape.fill
		}
		c, ok := parseColor(color)
		if !ok {
			continue
		}

		// gofpdf only knows a bare <svg width height><path/></svg> document.
		doc := fmt.Sprintf(`<svg width="%s" height="%s"><path d="%s"/></svg>`,
			strconv.FormatFloat(img.width, 'f', -1, 64),
			strconv.FormatFloat(img.height, 'f', -1, 64),
			shape.d)
		basic, err := gofpdf.SVGBasicParse([]byte(doc))
		if err != nil {
			continue
		}

		pdf.SetDrawColor(c.r, c.g, c.b)
		pdf.SetLineWidth(0.2)
		pdf.SetXY(x-img.minX*sx, y-img.minY*sy)
		pdf.SVGBasicWrite(&basic, sx)
	}

	pdf.SetDrawColor(0, 0, 0)
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// length reads a number with an optional "px" unit. Anything else is 0.
func length(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
