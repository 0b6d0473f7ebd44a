// =============================================================================
// DTE to PDF Converter - Configuration Module
// =============================================================================
//
// This module loads the application configuration.
//
// SOURCES (later wins):
//   1. Built-in defaults (Default())
//   2. config.yaml, or the file given with --config
//   3. Environment variables prefixed with DTE2PDF_, with dots replaced by
//      underscores (DTE2PDF_BARCODE_SECURITY_LEVEL=4)
//
// The "init" command writes the defaults to a YAML file as a starting point.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DTE2PDF"

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "config.yaml"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for *.xml files when no files are given.
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir receives the generated PDFs.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// TemplatesDir holds the template, the stylesheet and the barcode asset.
	TemplatesDir string `mapstructure:"templates_dir" yaml:"templates_dir"`

	// TemplateFile, StylesheetFile and BarcodeFile are relative to
	// TemplatesDir unless absolute.
	TemplateFile   string `mapstructure:"template_file" yaml:"template_file"`
	StylesheetFile string `mapstructure:"stylesheet_file" yaml:"stylesheet_file"`
	BarcodeFile    string `mapstructure:"barcode_file" yaml:"barcode_file"`

	// ArchiveDir receives input files after a successful conversion when
	// ArchiveOnSuccess is set.
	ArchiveDir       string `mapstructure:"archive_dir" yaml:"archive_dir"`
	ArchiveOnSuccess bool   `mapstructure:"archive_on_success" yaml:"archive_on_success"`

	// LogDir receives the per-run error and summary logs.
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// MaxConcurrency is the number of files converted at once. 1 means
	// sequential.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// ContinueOnError keeps a batch going after a file fails.
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`

	// StrictValidation fails a file on any validation finding. Otherwise
	// findings are only reported.
	StrictValidation bool `mapstructure:"strict_validation" yaml:"strict_validation"`

	// =========================================================================
	// FORMATTING SETTINGS
	// =========================================================================

	// Language spells out the total ("es").
	Language string `mapstructure:"language" yaml:"language"`

	// Locale picks the thousands separator ("es-CL").
	Locale string `mapstructure:"locale" yaml:"locale"`

	Barcode BarcodeConfig `mapstructure:"barcode" yaml:"barcode"`
	Items   ItemsConfig   `mapstructure:"items" yaml:"items"`
	PDF     PDFConfig     `mapstructure:"pdf" yaml:"pdf"`
}

// BarcodeConfig controls the PDF417 symbol.
type BarcodeConfig struct {
	// Columns is the data column count, 1 to 30. Timbres that need byte
	// compaction fall back to an automatic layout.
	Columns int `mapstructure:"columns" yaml:"columns"`

	// SecurityLevel is the error correction level, 0 to 8.
	SecurityLevel int `mapstructure:"security_level" yaml:"security_level"`
}

// ItemsConfig controls the items table.
type ItemsConfig struct {
	// MinRows is the padded height of the table.
	MinRows int `mapstructure:"min_rows" yaml:"min_rows"`
}

// PDFConfig controls page geometry.
type PDFConfig struct {
	PageSize string  `mapstructure:"page_size" yaml:"page_size"`
	Margin   float64 `mapstructure:"margin" yaml:"margin"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InputDir:         "./input",
		OutputDir:        "./output/pdf",
		TemplatesDir:     "./templates",
		TemplateFile:     "invoice.html",
		StylesheetFile:   "invoice.css",
		BarcodeFile:      "barcode.svg",
		ArchiveDir:       "./input_archive",
		ArchiveOnSuccess: false,
		LogDir:           "./logs",
		LogLevel:         "info",
		MaxConcurrency:   1,
		ContinueOnError:  true,
		StrictValidation: false,
		Language:         "es",
		Locale:           "es-CL",
		Barcode:          BarcodeConfig{Columns: 11, SecurityLevel: 2},
		Items:            ItemsConfig{MinRows: 20},
		PDF:              PDFConfig{PageSize: "Letter", Margin: 12},
	}
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration.
//
// PARAMETERS:
//   - path: Config file to read. Empty means DefaultFile in the working
//     directory, which may be absent.
//
// RETURNS:
//   - The merged configuration.
//   - An error if an explicitly given file cannot be read, or if the result
//     is invalid.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultFile)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		missing := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			missing = true
		}
		if path != "" || !missing {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("templates_dir", d.TemplatesDir)
	v.SetDefault("template_file", d.TemplateFile)
	v.SetDefault("stylesheet_file", d.StylesheetFile)
	v.SetDefault("barcode_file", d.BarcodeFile)
	v.SetDefault("archive_dir", d.ArchiveDir)
	v.SetDefault("archive_on_success", d.ArchiveOnSuccess)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_concurrency", d.MaxConcurrency)
	v.SetDefault("continue_on_error", d.ContinueOnError)
	v.SetDefault("strict_validation", d.StrictValidation)
	v.SetDefault("language", d.Language)
	v.SetDefault("locale", d.Locale)
	v.SetDefault("barcode.columns", d.Barcode.Columns)
	v.SetDefault("barcode.security_level", d.Barcode.SecurityLevel)
	v.SetDefault("items.min_rows", d.Items.MinRows)
	v.SetDefault("pdf.page_size", d.PDF.PageSize)
	v.SetDefault("pdf.margin", d.PDF.Margin)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.Barcode.Columns < 1 || c.Barcode.Columns > 30 {
		return fmt.Errorf("barcode.columns must be between 1 and 30, got %d", c.Barcode.Columns)
	}
	if c.Barcode.SecurityLevel < 0 || c.Barcode.SecurityLevel > 8 {
		return fmt.Errorf("barcode.security_level must be between 0 and 8, got %d", c.Barcode.SecurityLevel)
	}
	if c.Items.MinRows < 0 {
		return fmt.Errorf("items.min_rows must not be negative, got %d", c.Items.MinRows)
	}
	if c.TemplateFile == "" {
		return errors.New("template_file must be set")
	}
	return nil
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// TemplatePath returns the resolved template path.
func (c *Config) TemplatePath() string { return c.resolve(c.TemplateFile) }

// StylesheetPath returns the resolved stylesheet path.
func (c *Config) StylesheetPath() string { return c.resolve(c.StylesheetFile) }

// BarcodePath returns the resolved barcode asset path.
func (c *Config) BarcodePath() string { return c.resolve(c.BarcodeFile) }

func (c *Config) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.TemplatesDir, name)
}

// EnsureDirs creates the output, log and (when archiving) archive
// directories.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.OutputDir, c.LogDir}
	if c.ArchiveOnSuccess {
		dirs = append(dirs, c.ArchiveDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// WRITING
// =============================================================================

// Write saves cfg as YAML at path. An existing file is kept unless force is
// set.
func Write(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := "# DTE to PDF converter configuration.\n" +
		"# Every key can be overridden with a " + EnvPrefix + "_ environment variable.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
