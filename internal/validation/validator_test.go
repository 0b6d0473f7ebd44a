package validation

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string) *dte.ParsedInvoice {
	t.Helper()
	inv, err := dte.Load("../dte/testdata/" + name)
	require.NoError(t, err)
	return inv
}

func TestFixturesAreValid(t *testing.T) {
	for _, name := range []string{"factura_33.xml", "nota_credito_61.xml"} {
		t.Run(name, func(t *testing.T) {
			result := NewValidator().ValidateDocument(load(t, name))
			require.True(t, result.IsValid, FormatErrors(result.Errors))
			require.Empty(t, result.Errors)
			require.Positive(t, result.FieldsValidated)
		})
	}
}

func TestCheckDigit(t *testing.T) {
	tests := map[string]string{
		"76086428": "5",
		"96790240": "3",
		"77123456": "9",
		"12345678": "5",
		"11111111": "1",
		"10000013": "K",
	}
	for body, want := range tests {
		require.Equal(t, want, CheckDigit(body), body)
	}
}

func TestValidateRUT(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"76086428-5", true},
		{"76.086.428-5", true},
		{"10000013-k", true},
		{"76086428-4", false},
		{"76086428", false},
		{"", false},
		{"ABC-1", false},
	}
	for _, tt := range tests {
		err := validateRUT("RUTEmisor", tt.value)
		if tt.valid {
			require.Nil(t, err, tt.value)
			continue
		}
		require.NotNil(t, err, tt.value)
		require.Equal(t, SeverityError, err.Severity)
		require.Equal(t, "rut", err.Rule)
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(inv *dte.ParsedInvoice)
		rule     string
		severity string
		valid    bool
	}{
		{
			name:     "bad issue date",
			mutate:   func(inv *dte.ParsedInvoice) { inv.IssueDate = "2024-13-40" },
			rule:     "date",
			severity: SeverityError,
		},
		{
			name:     "due before issue",
			mutate:   func(inv *dte.ParsedInvoice) { inv.DueDate = "2024-01-01" },
			rule:     "due-date",
			severity: SeverityWarning,
			valid:    true,
		},
		{
			name:     "unknown type",
			mutate:   func(inv *dte.ParsedInvoice) { inv.DocType = "999" },
			rule:     "doc-type",
			severity: SeverityWarning,
			valid:    true,
		},
		{
			name:     "bad folio",
			mutate:   func(inv *dte.ParsedInvoice) { inv.Folio = "0" },
			rule:     "folio",
			severity: SeverityError,
		},
		{
			name:     "totals mismatch",
			mutate:   func(inv *dte.ParsedInvoice) { inv.TotalAmount = "1" },
			rule:     "totals",
			severity: SeverityWarning,
			valid:    true,
		},
		{
			name:     "non numeric quantity",
			mutate:   func(inv *dte.ParsedInvoice) { inv.Items[1].Quantity = "mucho" },
			rule:     "number",
			severity: SeverityError,
		},
		{
			name:     "line amount mismatch",
			mutate:   func(inv *dte.ParsedInvoice) { inv.Items[0].Amount = "9999" },
			rule:     "line-amount",
			severity: SeverityWarning,
			valid:    true,
		},
		{
			name:     "missing timbre",
			mutate:   func(inv *dte.ParsedInvoice) { inv.Timbre = "" },
			rule:     "timbre",
			severity: SeverityWarning,
			valid:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := load(t, "factura_33.xml")
			tt.mutate(inv)

			result := NewValidator().ValidateDocument(inv)
			require.Equal(t, tt.valid, result.IsValid)
			require.NotEmpty(t, result.Errors)

			var found *ValidationError
			for _, err := range result.Errors {
				if err.Rule == tt.rule {
					found = err
				}
			}
			require.NotNil(t, found, FormatErrors(result.Errors))
			require.Equal(t, tt.severity, found.Severity)

			strict := NewValidatorWithOptions(ValidationOptions{TreatWarningsAsErrors: true}).ValidateDocument(inv)
			require.False(t, strict.IsValid)
		})
	}
}

func TestAllFindingsCollected(t *testing.T) {
	inv := load(t, "factura_33.xml")
	inv.SupplierRUT = "bad"
	inv.ReceiverRUT = "bad"

	result := NewValidator().ValidateDocument(inv)
	require.Equal(t, 2, result.ErrorCount)
	require.Zero(t, result.WarningCount)
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 2)
}

func TestFormatErrors(t *testing.T) {
	require.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]*ValidationError{
		{Severity: SeverityError, Field: "Folio", Value: "0", Message: "folio must be a positive integer"},
		{Severity: SeverityWarning, Field: "MontoItem", Value: "1", Message: "differs", Line: 2},
	})
	require.True(t, strings.HasPrefix(out, "Validation completed with 2 finding(s)"))
	require.Contains(t, out, "1. [ERROR] Field 'Folio'")
	require.Contains(t, out, "2. [WARNING] Line 2, Field 'MontoItem'")
}
