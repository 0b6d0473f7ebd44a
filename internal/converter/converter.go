// =============================================================================
// DTE to PDF Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It orchestrates the entire
// conversion pipeline for a single file, from DTE parsing to PDF output.
//
// CONVERSION PIPELINE:
//   1. Load the DTE XML into a ParsedInvoice
//   2. Validate RUTs, dates, amounts and totals
//   3. Encode the timbre as a PDF417 barcode asset
//   4. Build the template context (tables, amounts, words)
//   5. Render the HTML template
//   6. Emit the PDF (or the HTML, on a dry run)
//   7. Archive the input file
//
// CONCURRENCY:
//   Shared dependencies (template, barcode renderer, emitter) are safe for
//   concurrent use, so one Converter per file may run in its own goroutine.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/barcode"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/config"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/pdf"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/render"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/validation"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the generated PDF (or HTML on a dry run).
	// This is empty if processing failed.
	OutputFile string

	// ArchivePath is where the input was moved, when archiving is on.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	// This is nil if processing was successful.
	Error error

	// Findings are the validation findings for the document, including
	// warnings that did not fail it.
	Findings []*validation.ValidationError

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Items is the number of Detalle lines in the document.
	Items int

	// References is the number of Referencia entries.
	References int

	// Taxes is the number of additional tax entries.
	Taxes int

	// ValidationErrors is the number of validation findings.
	ValidationErrors int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the collaborators shared by every Converter of a run.
type Deps struct {
	// Template is the parsed invoice template.
	Template *render.Renderer

	// Stylesheet is the CSS source handed to the emitter.
	Stylesheet string

	// Barcode writes the PDF417 asset.
	Barcode *barcode.Renderer

	// Emitter writes the PDF.
	Emitter *pdf.Emitter

	// Validator checks the parsed document.
	Validator *validation.Validator

	// StrictValidation fails a document whose validation result is
	// invalid. Otherwise findings are only reported.
	StrictValidation bool

	// Files archives converted inputs.
	Files *utils.FileManager

	// Format controls locale dependent formatting.
	Format render.Options

	// OutputDir receives the generated files.
	OutputDir string

	// DryRun writes the rendered HTML instead of the PDF and leaves the
	// barcode asset untouched.
	DryRun bool

	// Logger receives progress messages. Nil means the default logger.
	Logger Logger
}

// NewDeps builds the shared dependencies from configuration. The template
// and stylesheet are read once here.
func NewDeps(cfg *config.Config, logger Logger) (*Deps, error) {
	tmpl, err := render.Load(cfg.TemplatePath())
	if err != nil {
		return nil, err
	}

	css, err := os.ReadFile(cfg.StylesheetPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read stylesheet: %w", err)
	}

	barcodeOpts := barcode.DefaultOptions()
	barcodeOpts.Columns = cfg.Barcode.Columns
	barcodeOpts.SecurityLevel = byte(cfg.Barcode.SecurityLevel)

	files := utils.NewFileManager(cfg.InputDir, cfg.ArchiveDir, cfg.LogDir)
	files.ArchiveOnSuccess = cfg.ArchiveOnSuccess

	return &Deps{
		Template:   tmpl,
		Stylesheet: string(css),
		Barcode:    barcode.NewRenderer(cfg.BarcodePath(), barcodeOpts),
		Emitter:    pdf.NewEmitter(pdf.Options{PageSize: cfg.PDF.PageSize, Margin: cfg.PDF.Margin}),
		Validator: validation.NewValidatorWithOptions(validation.ValidationOptions{
			TreatWarningsAsErrors: cfg.StrictValidation,
		}),
		Files: files,
		Format: render.Options{
			Language: cfg.Language,
			Locale:   cfg.Locale,
			MinRows:  cfg.Items.MinRows,
		},
		StrictValidation: cfg.StrictValidation,
		OutputDir:        cfg.OutputDir,
		Logger:           logger,
	}, nil
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single DTE file to PDF.
type Converter struct {
	// path is the input XML file.
	path string

	deps *Deps

	logger Logger
}

// Logger is an interface for logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - path: The path to the input DTE XML file.
//   - deps: Shared dependencies, typically from NewDeps.
//
// RETURNS:
//   - A new Converter instance.
func New(path string, deps *Deps) *Converter {
	var logger Logger
	switch l := deps.Logger.(type) {
	case nil:
		logger = &defaultLogger{}
	case *SlogLogger:
		logger = l.With("file", filepath.Base(path))
	default:
		logger = l
	}
	return &Converter{path: path, deps: deps, logger: logger}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing.
//
// A cancelled ctx stops the pipeline between steps; the file is left where
// it was.
func (c *Converter) Run(ctx context.Context) Result {
	startTime := time.Now()
	result := Result{FilePath: c.path}

	fail := func(err error) Result {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(startTime)
		c.logger.Error("Failed %s: %v", c.path, err)
		return result
	}

	// =========================================================================
	// STEP 1: LOAD DOCUMENT
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	c.logger.Info("Processing file: %s", c.path)

	inv, err := dte.Load(c.path)
	if err != nil {
		return fail(fmt.Errorf("failed to load document: %w", err))
	}

	result.Stats.Items = len(inv.Items)
	result.Stats.References = len(inv.References)
	result.Stats.Taxes = len(inv.Taxes)
	c.logger.Debug("Loaded %s %s folio %s with %d items", inv.DocTypeAbbrev, inv.DocType, inv.Folio, len(inv.Items))

	// =========================================================================
	// STEP 2: VALIDATE
	// =========================================================================

	if c.deps.Validator != nil {
		validated := c.deps.Validator.ValidateDocument(inv)
		result.Findings = validated.Errors
		result.Stats.ValidationErrors = len(validated.Errors)

		for _, ve := range validated.Errors {
			c.logger.Warn("Validation %s", ve.Error())
		}
		if c.deps.StrictValidation && !validated.IsValid {
			return fail(fmt.Errorf("validation failed with %d error(s) and %d warning(s)",
				validated.ErrorCount, validated.WarningCount))
		}
	}

	// =========================================================================
	// STEP 3: BARCODE
	// =========================================================================
	// A document without a timbre still gets a PDF, without the barcode.

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var svg []byte
	if c.deps.DryRun {
		svg, err = c.deps.Barcode.Encode(inv.Timbre)
	} else {
		svg, err = c.deps.Barcode.Render(inv.Timbre)
	}
	switch {
	case errors.Is(err, barcode.ErrEmptyTimbre):
		c.logger.Warn("Document %s has no timbre; barcode omitted", c.path)
		svg = nil
	case err != nil:
		return fail(fmt.Errorf("failed to render barcode: %w", err))
	default:
		c.logger.Debug("Encoded timbre (%d bytes) into %d bytes of SVG", len(inv.Timbre), len(svg))
	}

	// =========================================================================
	// STEP 4: BUILD CONTEXT
	// =========================================================================

	tctx, err := render.NewContext(inv, c.deps.Format)
	if err != nil {
		return fail(fmt.Errorf("failed to build template context: %w", err))
	}

	// =========================================================================
	// STEP 5: RENDER HTML
	// =========================================================================

	html, err := c.deps.Template.Render(tctx)
	if err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 6: WRITE OUTPUT
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	outputPath := pdf.OutputPath(c.deps.OutputDir, inv)
	if c.deps.DryRun {
		outputPath = strings.TrimSuffix(outputPath, ".pdf") + ".html"
		if err := writeHTML(outputPath, html); err != nil {
			return fail(err)
		}
	} else {
		doc := pdf.Document{
			HTML:       html,
			Stylesheet: c.deps.Stylesheet,
			// The asset slot is always filled so a document without timbre
			// never picks up another document's barcode from disk.
			Assets:  map[string][]byte{filepath.Base(c.deps.Barcode.Path()): svg},
			BaseDir: c.deps.Template.Dir(),
			Title:   strings.TrimSuffix(filepath.Base(outputPath), ".pdf"),
		}
		if err := c.deps.Emitter.Emit(doc, outputPath); err != nil {
			return fail(fmt.Errorf("failed to write output: %w", err))
		}
	}

	result.OutputFile = outputPath
	c.logger.Info("Wrote output to: %s", outputPath)

	// =========================================================================
	// STEP 7: ARCHIVE INPUT
	// =========================================================================

	if c.deps.Files != nil && !c.deps.DryRun {
		archived, err := c.deps.Files.ArchiveInputFile(c.path)
		if err != nil {
			// Log the error but don't fail the processing.
			c.logger.Warn("Failed to archive %s: %v", c.path, err)
		} else if archived != c.path {
			result.ArchivePath = archived
			c.logger.Debug("Archived %s to %s", c.path, archived)
		}
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)
	return result
}

func writeHTML(path, html string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML: %w", err)
	}
	return nil
}
