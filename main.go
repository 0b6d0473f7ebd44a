// =============================================================================
// DTE to PDF Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   dte2pdf convert     - Convert DTE XML files to PDF
//   dte2pdf accumulate  - Append DTE fields to an XLSX/CSV/SQLite dataset
//   dte2pdf init        - Write a default config.yaml
//   dte2pdf version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/        : CLI command definitions (Cobra)
//   - internal/   : Core logic (DTE loading, rendering, PDF output, dataset)
//   - pkg/        : Shared file utilities
//   - templates/  : Invoice HTML template and stylesheet
//
// =============================================================================

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/cmd"
)

func main() {
	// An interrupt stops a batch between documents.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.Execute(ctx)
}
