// =============================================================================
// DTE to PDF Converter - Accumulate Command
// =============================================================================
//
// COMMAND USAGE:
//   dte2pdf accumulate [files...] --out dataset.xlsx
//
// The dataset file is read first (when it exists), one row is appended per
// document, and the whole dataset is written back. The format follows the
// extension: .xlsx, .csv, or .db/.sqlite for SQLite.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/accumulator"
	"github.com/ginjaninja78/DTE-to-PDF-conversion/pkg/utils"
	"github.com/spf13/cobra"
)

// datasetPath is the dataset file to extend.
var datasetPath string

var accumulateCmd = &cobra.Command{
	Use:   "accumulate [files...]",
	Short: "Append DTE fields to a dataset",
	Long: `The accumulate command appends one row per DTE document to a dataset with
the columns rut, fecha, folio, montoNeto, referencias_oc, tipoDoc, items and
comuna. Rows already in the dataset are kept; the same document given twice
yields two rows.

Without arguments every *.xml file in input_dir is used.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runAccumulate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(accumulateCmd)

	accumulateCmd.Flags().StringVarP(&datasetPath, "out", "o", "dataset.xlsx",
		"Dataset file (.xlsx, .csv, .db or .sqlite)")
}

func runAccumulate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		files, err = utils.NewFileManager(cfg.InputDir, "", "").DiscoverInputFiles(".xml")
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No XML files found in the input directory.")
		return nil
	}

	if !utils.FileExists(datasetPath) {
		logger.Info("creating new dataset", "path", datasetPath)
	}
	ds, err := accumulator.Open(datasetPath)
	if err != nil {
		return err
	}
	before := ds.Len()

	var failed int
	for _, file := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		next, err := accumulator.AppendFile(ds, file)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  ✗ %s: %v\n", filepath.Base(file), err)
			if !cfg.ContinueOnError {
				return fmt.Errorf("failed to accumulate %s: %w", file, err)
			}
			continue
		}
		ds = next
		logger.Debug("appended document", "file", file)
	}

	if err := accumulator.Save(ds, datasetPath); err != nil {
		return err
	}

	fmt.Fprintf(out, "Appended %d row(s) to %s (%d total)\n", ds.Len()-before, datasetPath, ds.Len())
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
	}
	return nil
}
