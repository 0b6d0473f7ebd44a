// =============================================================================
// DTE to PDF Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main command for turning DTE
// XML files into PDF invoices.
//
// COMMAND USAGE:
//   dte2pdf convert [files...] [flags]
//
// FLAGS:
//   --workers  : Number of files converted at once (default: max_concurrency)
//   --dry-run  : Render HTML only; no PDF, no barcode asset, no archiving
//   --archive  : Move converted inputs to archive_dir
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Collect input files (arguments, or *.xml in input_dir)
//   3. Convert files on a pool of workers
//   4. Collect results, write the error and summary logs
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/converter"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/validation"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun renders HTML instead of PDF.
var dryRun bool

// workers overrides max_concurrency when positive.
var workers int

// archive overrides archive_on_success when set.
var archive bool

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert DTE XML files to PDF",
	Long: `The convert command renders each DTE XML file as a PDF invoice in the output
directory, named "{date} {type} {Supplier} {folio}.pdf".

Without arguments every *.xml file in input_dir is converted. Each file is
processed independently; with continue_on_error (the default) a failure does
not stop the batch.

On successful processing:
  - The PDF is placed in the output directory (overwriting a same-named file)
  - The input is moved to the archive when archiving is enabled
On error:
  - The failure is recorded in logs/error_log_<run>.txt
  - The input remains where it was`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().IntVarP(&workers, "workers", "w", 0,
		"Number of files converted at once (default: max_concurrency)")
	convertCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Render HTML only, without writing PDFs, the barcode asset or archiving")
	convertCmd.Flags().BoolVar(&archive, "archive", false,
		"Move converted input files to archive_dir")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runConvert(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	startTime := time.Now()
	runID := utils.NewRunID()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.MaxConcurrency = workers
	}
	if cmd.Flags().Changed("archive") {
		cfg.ArchiveOnSuccess = archive
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	runLogger := logger.With("run", runID)
	deps, err := converter.NewDeps(cfg, converter.NewSlogLogger(logger).With("run", runID))
	if err != nil {
		return err
	}
	deps.DryRun = dryRun

	// =========================================================================
	// STEP 2: COLLECT INPUT FILES
	// =========================================================================

	files := args
	if len(files) == 0 {
		files, err = deps.Files.DiscoverInputFiles(".xml")
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No XML files found in the input directory.")
		return nil
	}

	runLogger.Info("starting conversion", "files", len(files), "workers", cfg.MaxConcurrency, "dry_run", dryRun)

	// =========================================================================
	// STEP 3: CONVERT ON A WORKER POOL
	// =========================================================================
	// Without continue_on_error the first failure cancels the run; files
	// already in flight stop at their next step.

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	jobs := make(chan string)
	results := make(chan converter.Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < min(cfg.MaxConcurrency, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- converter.New(path, deps).Run(ctx)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, file := range files {
			select {
			case jobs <- file:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 4: COLLECT RESULTS
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  startTime,
		TotalFiles: len(files),
		DryRun:     dryRun,
	}
	var errorEntries []utils.ErrorLogEntry
	skipped := len(files)

	for result := range results {
		skipped--
		summary.TotalItems += result.Stats.Items
		summary.TotalReferences += result.Stats.References
		summary.ValidationIssues += result.Stats.ValidationErrors
		errorEntries = append(errorEntries, findingEntries(result)...)

		name := filepath.Base(result.FilePath)
		switch {
		case result.Success:
			summary.SuccessfulFiles++
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				OutputFile:  result.OutputFile,
				ArchivePath: result.ArchivePath,
				Items:       result.Stats.Items,
				ProcessTime: result.Stats.ProcessingTime,
			})
			fmt.Fprintf(out, "  ✓ %s -> %s\n", name, result.OutputFile)

		case errors.Is(result.Error, context.Canceled):
			skipped++

		default:
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    result.FilePath,
				ErrorMessage: result.Error.Error(),
			})
			errorEntries = append(errorEntries, utils.ErrorLogEntry{
				Timestamp:    time.Now(),
				FileName:     result.FilePath,
				ErrorType:    "conversion",
				ErrorMessage: result.Error.Error(),
			})
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)
			if len(result.Findings) > 0 {
				fmt.Fprint(out, indent(validation.FormatErrors(result.Findings), "      "))
			}

			if !cfg.ContinueOnError {
				cancel()
			}
		}
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 5: WRITE LOGS AND PRINT SUMMARY
	// =========================================================================

	errorLog, err := deps.Files.WriteErrorLog(runID, errorEntries)
	if err != nil {
		runLogger.Warn("could not write error log", "err", err)
	}
	summaryLog, err := deps.Files.WriteSummaryLog(summary)
	if err != nil {
		runLogger.Warn("could not write summary log", "err", err)
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Run:             %s\n", runID)
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped:         %d\n", skipped)
	}
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime))
	if summaryLog != "" {
		fmt.Fprintf(out, "Summary:         %s\n", summaryLog)
	}
	if errorLog != "" {
		fmt.Fprintf(out, "Error log:       %s\n", errorLog)
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	return nil
}

// indent prefixes every non-empty line of text.
func indent(text, prefix string) string {
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "")
}

// findingEntries turns validation findings into error log entries.
func findingEntries(result converter.Result) []utils.ErrorLogEntry {
	entries := make([]utils.ErrorLogEntry, 0, len(result.Findings))
	for _, f := range result.Findings {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    time.Now(),
			FileName:     result.FilePath,
			ErrorType:    "validation " + f.Severity,
			ErrorMessage: f.Message,
			FieldName:    f.Field,
			FieldValue:   f.Value,
			LineNumber:   f.Line,
		})
	}
	return entries
}
