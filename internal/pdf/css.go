package pdf

import (
	"strconv"
	"strings"

	"github.com/gorilla/css/scanner"
)

// =============================================================================
// STYLESHEET
// =============================================================================
//
// Only the properties the emitter can honour are kept: font-family,
// font-size, font-weight, color, background(-color) and text-align.
// Selectors are matched on their last compound part, so
// "table.items_factura th" applies to every th.
//
// =============================================================================

type cssRule struct {
	selector string
	decls    map[string]string
}

// Stylesheet is a parsed list of rules, in source order.
type Stylesheet struct {
	rules []cssRule
}

// ParseStylesheet tokenizes src and collects its plain rules. At-rules
// (@page, @media, ...) are skipped.
func ParseStylesheet(src string) *Stylesheet {
	const (
		stateSelector = iota
		stateProperty
		stateValue
		stateAtRule
	)

	sheet := &Stylesheet{}
	s := scanner.New(src)

	state := stateSelector
	depth := 0
	var selector, value strings.Builder
	var selectors []string
	var property string
	decls := map[string]string{}

	pushSelector := func() {
		if sel := strings.TrimSpace(selector.String()); sel != "" {
			selectors = append(selectors, sel)
		}
		selector.Reset()
	}
	commitDecl := func() {
		if property != "" {
			decls[property] = strings.TrimSpace(value.String())
		}
		property = ""
		value.Reset()
	}
	commitRule := func() {
		for _, sel := range selectors {
			sheet.rules = append(sheet.rules, cssRule{selector: sel, decls: decls})
		}
		selectors = nil
		decls = map[string]string{}
	}

	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		if tok.Type == scanner.TokenComment {
			continue
		}

		switch state {
		case stateSelector:
			switch {
			case tok.Type == scanner.TokenAtKeyword:
				state, depth = stateAtRule, 0
			case tok.Type == scanner.TokenChar && tok.Value == "{":
				pushSelector()
				state = stateProperty
			case tok.Type == scanner.TokenChar && tok.Value == ",":
				pushSelector()
			case tok.Type == scanner.TokenS:
				selector.WriteByte(' ')
			default:
				selector.WriteString(tok.Value)
			}

		case stateProperty:
			switch {
			case tok.Type == scanner.TokenIdent:
				property = strings.ToLower(tok.Value)
			case tok.Type == scanner.TokenChar && tok.Value == ":":
				state = stateValue
			case tok.Type == scanner.TokenChar && tok.Value == "}":
				commitRule()
				state = stateSelector
			}

		case stateValue:
			switch {
			case tok.Type == scanner.TokenChar && tok.Value == ";":
				commitDecl()
				state = stateProperty
			case tok.Type == scanner.TokenChar && tok.Value == "}":
				commitDecl()
				commitRule()
				state = stateSelector
			case tok.Type == scanner.TokenS:
				value.WriteByte(' ')
			default:
				value.WriteString(tok.Value)
			}

		case stateAtRule:
			if tok.Type != scanner.TokenChar {
				continue
			}
			switch tok.Value {
			case "{":
				depth++
			case "}":
				depth--
				if depth <= 0 {
					state = stateSelector
				}
			case ";":
				if depth == 0 {
					state = stateSelector
				}
			}
		}
	}

	return sheet
}

// declarations returns the merged declarations that apply to an element,
// later rules overriding earlier ones.
func (s *Stylesheet) declarations(tag, class string) map[string]string {
	merged := map[string]string{}
	if s == nil {
		return merged
	}
	for _, rule := range s.rules {
		if !matches(rule.selector, tag, class) {
			continue
		}
		for k, v := range rule.decls {
			merged[k] = v
		}
	}
	return merged
}

func matches(selector, tag, class string) bool {
	if i := strings.LastIndexByte(selector, ' '); i >= 0 {
		selector = selector[i+1:]
	}
	if selector == "*" || selector == tag {
		return true
	}

	selTag, selClass, hasClass := strings.Cut(selector, ".")
	if !hasClass {
		return false
	}
	if selTag != "" && selTag != tag {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == selClass {
			return true
		}
	}
	return false
}

// =============================================================================
// COMPUTED STYLE
// =============================================================================

type rgb struct{ r, g, b int }

type style struct {
	family string
	size   float64
	bold   bool
	italic bool
	color  rgb
	fill   *rgb
	align  string
}

var headingSizes = map[string]float64{
	"h1": 16, "h2": 13, "h3": 11, "h4": 10, "h5": 9, "h6": 8,
}

// compute derives the style of an element from its parent's.
func (s *Stylesheet) compute(parent style, tag, class string) style {
	st := parent
	st.fill = nil

	if size, ok := headingSizes[tag]; ok {
		st.size = size
		st.bold = true
	}
	switch tag {
	case "b", "strong", "th":
		st.bold = true
	case "i", "em":
		st.italic = true
	}

	for prop, val := range s.declarations(tag, class) {
		switch prop {
		case "font-family":
			st.family = fontFamily(val)
		case "font-size":
			if size, ok := fontSize(val, parent.size); ok {
				st.size = size
			}
		case "font-weight":
			st.bold = isBold(val)
		case "font-style":
			st.italic = val == "italic" || val == "oblique"
		case "color":
			if c, ok := parseColor(val); ok {
				st.color = c
			}
		case "background", "background-color":
			if c, ok := parseColor(val); ok {
				st.fill = &c
			}
		case "text-align":
			switch val {
			case "center":
				st.align = "C"
			case "right":
				st.align = "R"
			default:
				st.align = "L"
			}
		}
	}
	return st
}

func (st style) fontStyle() string {
	switch {
	case st.bold && st.italic:
		return "BI"
	case st.bold:
		return "B"
	case st.italic:
		return "I"
	}
	return ""
}

func isBold(val string) bool {
	switch val {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(val)
	return err == nil && n >= 600
}

// fontFamily maps a CSS family list to one of the PDF core fonts.
func fontFamily(val string) string {
	for _, name := range strings.Split(val, ",") {
		name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
		switch name {
		case "helvetica", "arial", "sans-serif", "verdana":
			return "Helvetica"
		case "times", "times new roman", "serif", "georgia":
			return "Times"
		case "courier", "courier new", "monospace":
			return "Courier"
		}
	}
	return "Helvetica"
}

// fontSize converts a CSS length to points.
func fontSize(val string, parent float64) (float64, bool) {
	units := []struct {
		suffix string
		factor float64
	}{
		{"rem", 10}, {"em", parent}, {"pt", 1}, {"px", 0.75}, {"mm", 72 / 25.4},
	}
	for _, unit := range units {
		if num, ok := strings.CutSuffix(val, unit.suffix); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || n <= 0 {
				return 0, false
			}
			return n * unit.factor, true
		}
	}
	if pct, ok := strings.CutSuffix(val, "%"); ok {
		n, err := strconv.ParseFloat(pct, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return parent * n / 100, true
	}
	return 0, false
}

var namedColors = map[string]rgb{
	"black": {0, 0, 0},
	"white": {255, 255, 255},
	"gray":  {128, 128, 128},
	"grey":  {128, 128, 128},
	"red":   {255, 0, 0},
	"blue":  {0, 0, 255},
}

// parseColor reads #rgb, #rrggbb or a few color names.
func parseColor(val string) (rgb, bool) {
	val = strings.ToLower(strings.TrimSpace(val))
	if c, ok := namedColors[val]; ok {
		return c, true
	}

	hex, ok := strings.CutPrefix(val, "#")
	if !ok {
		return rgb{}, false
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff)}, true
}
