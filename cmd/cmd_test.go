package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the CLI in a fresh working directory with package flags reset.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, verbose = "", false
	dryRun, workers, archive = false, 0, false
	datasetPath = "dataset.xlsx"
	initPath, initForce = "config.yaml", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// workspace points the configuration at a temp directory through the
// environment and returns it.
func workspace(t *testing.T) string {
	t.Helper()

	templates, err := filepath.Abs(filepath.Join("..", "templates"))
	require.NoError(t, err)

	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DTE2PDF_TEMPLATES_DIR", templates)
	t.Setenv("DTE2PDF_BARCODE_FILE", filepath.Join(dir, "barcode.svg"))
	t.Setenv("DTE2PDF_INPUT_DIR", filepath.Join(dir, "input"))
	t.Setenv("DTE2PDF_OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("DTE2PDF_LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("DTE2PDF_LOG_LEVEL", "error")
	return dir
}

func copyFixture(t *testing.T, name, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "internal", "dte", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))
	require.NoError(t, os.WriteFile(dst, data, 0644))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "DTE to PDF Converter")
	require.Contains(t, out, "Version:    "+Version)
}

func TestInit(t *testing.T) {
	dir := workspace(t)

	out, err := execute(t, "init")
	require.NoError(t, err)
	require.Contains(t, out, "Wrote config.yaml")
	require.FileExists(t, filepath.Join(dir, "config.yaml"))

	_, err = execute(t, "init")
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--force")
	require.NoError(t, err)
}

func TestConvertDirectory(t *testing.T) {
	dir := workspace(t)
	copyFixture(t, "factura_33.xml", filepath.Join(dir, "input", "a.xml"))
	copyFixture(t, "nota_credito_61.xml", filepath.Join(dir, "input", "b.xml"))

	out, err := execute(t, "convert", "--workers", "2")
	require.NoError(t, err, out)
	require.Contains(t, out, "Successful:      2")

	pdfs, err := filepath.Glob(filepath.Join(dir, "output", "*.pdf"))
	require.NoError(t, err)
	require.Len(t, pdfs, 2)

	summaries, err := filepath.Glob(filepath.Join(dir, "logs", "processing_summary_*.txt"))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	// Inputs stay put unless archiving is enabled.
	require.FileExists(t, filepath.Join(dir, "input", "a.xml"))
}

func TestConvertDryRun(t *testing.T) {
	dir := workspace(t)
	input := filepath.Join(dir, "factura.xml")
	copyFixture(t, "factura_33.xml", input)

	out, err := execute(t, "convert", "--dry-run", input)
	require.NoError(t, err, out)

	html, err := filepath.Glob(filepath.Join(dir, "output", "*.html"))
	require.NoError(t, err)
	require.Len(t, html, 1)
	require.NoFileExists(t, filepath.Join(dir, "barcode.svg"))
}

func TestConvertReportsFailures(t *testing.T) {
	dir := workspace(t)
	good := filepath.Join(dir, "input", "good.xml")
	bad := filepath.Join(dir, "input", "bad.xml")
	copyFixture(t, "factura_33.xml", good)
	require.NoError(t, os.WriteFile(bad, []byte("<DTE><broken"), 0644))

	out, err := execute(t, "convert")
	require.ErrorContains(t, err, "1 of 2 file(s) failed")
	require.Contains(t, out, "Successful:      1")

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "error_log_*.txt"))
	require.NoError(t, err)
	require.Len(t, logs, 1)

	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	require.Contains(t, string(data), "bad.xml")
}

func TestConvertStrictValidation(t *testing.T) {
	dir := workspace(t)
	data, err := os.ReadFile(filepath.Join("..", "internal", "dte", "testdata", "factura_33.xml"))
	require.NoError(t, err)
	bad := strings.Replace(string(data), "<RUTEmisor>76086428-5</RUTEmisor>", "<RUTEmisor>76086428-4</RUTEmisor>", 1)
	input := filepath.Join(dir, "input", "factura.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0755))
	require.NoError(t, os.WriteFile(input, []byte(bad), 0644))

	// Lenient by default: the finding is logged, the PDF is written.
	out, err := execute(t, "convert")
	require.NoError(t, err, out)
	require.Contains(t, out, "Successful:      1")

	t.Setenv("DTE2PDF_STRICT_VALIDATION", "true")
	out, err = execute(t, "convert")
	require.ErrorContains(t, err, "1 of 1 file(s) failed")
	require.Contains(t, out, "Validation completed with 1 finding(s)")
	require.Contains(t, out, "      1. [ERROR] Field 'RUTEmisor'")
}

func TestConvertEmptyInput(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "input"), 0755))

	out, err := execute(t, "convert")
	require.NoError(t, err)
	require.Contains(t, out, "No XML files found")
}

func TestAccumulate(t *testing.T) {
	dir := workspace(t)
	factura := filepath.Join(dir, "factura.xml")
	nota := filepath.Join(dir, "nota.xml")
	copyFixture(t, "factura_33.xml", factura)
	copyFixture(t, "nota_credito_61.xml", nota)
	dataset := filepath.Join(dir, "data.csv")

	out, err := execute(t, "accumulate", "--out", dataset, factura, nota)
	require.NoError(t, err)
	require.Contains(t, out, "Appended 2 row(s)")

	out, err = execute(t, "accumulate", "--out", dataset, factura)
	require.NoError(t, err)
	require.Contains(t, out, "(3 total)")
}

func TestAccumulateUnsupportedFormat(t *testing.T) {
	dir := workspace(t)
	factura := filepath.Join(dir, "factura.xml")
	copyFixture(t, "factura_33.xml", factura)

	_, err := execute(t, "accumulate", "--out", filepath.Join(dir, "data.json"), factura)
	require.ErrorContains(t, err, "unsupported dataset format")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
