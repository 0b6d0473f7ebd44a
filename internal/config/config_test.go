package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, filepath.Join("templates", "invoice.html"), cfg.TemplatePath())
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: /tmp/pdfs
max_concurrency: 4
locale: en-US
barcode:
  security_level: 5
items:
  min_rows: 0
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pdfs", cfg.OutputDir)
	require.Equal(t, 4, cfg.MaxConcurrency)
	require.Equal(t, "en-US", cfg.Locale)
	require.Equal(t, 5, cfg.Barcode.SecurityLevel)
	require.Equal(t, 11, cfg.Barcode.Columns)
	require.Zero(t, cfg.Items.MinRows)
	require.Equal(t, "es", cfg.Language)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DTE2PDF_MAX_CONCURRENCY", "8")
	t.Setenv("DTE2PDF_BARCODE_SECURITY_LEVEL", "3")
	t.Setenv("DTE2PDF_STRICT_VALIDATION", "true")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_concurrency: 2\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.MaxConcurrency)
	require.Equal(t, 3, cfg.Barcode.SecurityLevel)
	require.True(t, cfg.StrictValidation)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"concurrency":    "max_concurrency: 0\n",
		"security level": "barcode:\n  security_level: 9\n",
		"columns":        "barcode:\n  columns: 31\n",
		"log level":      "log_level: loud\n",
		"min rows":       "items:\n  min_rows: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			require.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg := Default()
	cfg.OutputDir = "out"
	cfg.ArchiveOnSuccess = true
	require.NoError(t, Write(cfg, path, false))

	// Existing files are kept unless forced.
	require.Error(t, Write(Default(), path, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	require.NoError(t, Write(Default(), path, true))
	loaded, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), loaded)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.LogDir = filepath.Join(root, "logs")
	cfg.ArchiveDir = filepath.Join(root, "archive")

	require.NoError(t, cfg.EnsureDirs())
	require.DirExists(t, cfg.OutputDir)
	require.DirExists(t, cfg.LogDir)
	require.NoDirExists(t, cfg.ArchiveDir)

	cfg.ArchiveOnSuccess = true
	require.NoError(t, cfg.EnsureDirs())
	require.DirExists(t, cfg.ArchiveDir)
}

func TestResolveAbsolute(t *testing.T) {
	cfg := Default()
	abs := filepath.Join(t.TempDir(), "custom.html")
	cfg.TemplateFile = abs
	require.Equal(t, abs, cfg.TemplatePath())
	require.Equal(t, filepath.Join("templates", "barcode.svg"), cfg.BarcodePath())
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
