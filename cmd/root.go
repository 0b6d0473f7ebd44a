// =============================================================================
// DTE to PDF Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (dte2pdf)
//   ├── convertCmd    (dte2pdf convert)
//   ├── accumulateCmd (dte2pdf accumulate)
//   ├── initCmd       (dte2pdf init)
//   └── versionCmd    (dte2pdf version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Commands
//   that need configuration call setup(), which loads it through viper and
//   installs the slog logger.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/config"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// Empty means ./config.yaml when present, defaults otherwise.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dte2pdf",
	Short: "DTE to PDF Converter - Render Chilean electronic tax documents as PDF",
	Long: `dte2pdf turns DTE XML documents (facturas, notas de crédito, guías) issued
under the SII electronic invoicing scheme into printable PDF invoices, and
accumulates their key fields into a dataset.

Key Features:
  - HTML template driven layout with a PDF417 timbre barcode
  - RUT, date and totals validation with detailed error reporting
  - Concurrent processing with per-run error and summary logs
  - Dataset accumulation into XLSX, CSV or SQLite

Example Usage:
  dte2pdf convert                          # Convert every *.xml in input_dir
  dte2pdf convert factura.xml --dry-run    # Render HTML only
  dte2pdf accumulate *.xml --out data.xlsx # Append rows to a dataset
  dte2pdf init                             # Write a default config.yaml`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command with ctx. It is called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default is ./config.yaml when present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// setup loads the configuration and installs the process-wide logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
