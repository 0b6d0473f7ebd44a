// =============================================================================
// DTE to PDF Converter - Template Renderer
// =============================================================================
//
// This module fills the invoice HTML template from a parsed document.
//
// FLOW:
//   1. Load() parses the template file once at process start.
//   2. NewContext() flattens a ParsedInvoice into the placeholder map.
//   3. Render() executes the shared template against one context.
//
// The parsed template is never modified after Load, so one Renderer can
// serve any number of concurrent workers.
//
// =============================================================================

package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// ErrDateFormat is returned when a date is not in YYYY-MM-DD form.
var ErrDateFormat = errors.New("date format error")

const (
	isoLayout     = "2006-01-02"
	displayLayout = "02-01-2006"
)

// Renderer holds the parsed invoice template.
type Renderer struct {
	path string
	tmpl *template.Template
}

// Load reads and parses the template at path.
//
// PARAMETERS:
//   - path: Path to the HTML template (html/template syntax).
//
// RETURNS:
//   - A Renderer ready to be shared across documents.
//   - An error if the file cannot be read or parsed.
func Load(path string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	r, err := Parse(filepath.Base(path), string(data))
	if err != nil {
		return nil, err
	}
	r.path = path
	return r, nil
}

// Parse builds a Renderer from template text.
func Parse(name, text string) (*Renderer, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return &Renderer{path: name, tmpl: tmpl}, nil
}

// Path returns where the template was loaded from.
func (r *Renderer) Path() string {
	return r.path
}

// Dir returns the template's directory, used to resolve relative assets.
func (r *Renderer) Dir() string {
	return filepath.Dir(r.path)
}

// Render executes the template against ctx and returns the HTML document.
func (r *Renderer) Render(ctx Context) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", r.path, err)
	}
	return buf.String(), nil
}

// FormatDate converts an ISO date (YYYY-MM-DD) to the printed DD-MM-YYYY
// form.
//
// EXAMPLE:
//   FormatDate("2024-03-05") -> "05-03-2024"
func FormatDate(s string) (string, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrDateFormat, s, err)
	}
	return t.Format(displayLayout), nil
}
