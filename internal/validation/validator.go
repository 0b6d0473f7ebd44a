// =============================================================================
// DTE to PDF Converter - Validation Engine
// =============================================================================
//
// This module runs sanity checks on a parsed DTE before it is printed.
// None of the checks are required to produce a PDF; they exist so that
// malformed or inconsistent documents are reported instead of silently
// printed.
//
// CHECKS:
//   Document-level:
//     - Supplier and receiver RUT: format and módulo 11 check digit
//     - Issue and due dates in YYYY-MM-DD form, due not before issue
//     - Known document type code
//     - Folio is a positive integer
//     - Totals are integers and add up (net + exempt + VAT)
//     - The timbre is present
//   Line-level:
//     - Quantity and unit price are numbers
//     - Line amount matches quantity x price (truncated)
//
// ERROR HANDLING:
//   - Findings are collected, not returned one at a time
//   - "error" findings make the result invalid, "warning" findings do not
//     unless TreatWarningsAsErrors is set (strict mode)
//   - An invalid result is a report, not a failure: the converter only
//     refuses a document over its findings in strict mode
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
	"github.com/shopspring/decimal"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the DTE element that failed validation ("RUTEmisor", ...).
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Rule is the check that was violated ("rut", "date", ...).
	Rule string

	// Message is a human-readable error message.
	Message string

	// Line is the 1-based detail line, 0 for document-level findings.
	Line int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] Line %d, Field '%s': %s (value: '%s')",
			strings.ToUpper(e.Severity), e.Line, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("[%s] Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity), e.Field, e.Message, e.Value)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no error findings, or no findings at
	// all under TreatWarningsAsErrors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	// ErrorCount is the number of error findings.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// FieldsValidated is the number of checks performed.
	FieldsValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool
}

// Validator checks parsed documents.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// ValidateDocument runs every check on inv.
func (v *Validator) ValidateDocument(inv *dte.ParsedInvoice) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	checks := v.documentChecks(inv)
	for i := range inv.Items {
		checks = append(checks, lineChecks(&inv.Items[i], i+1)...)
	}

	for _, check := range checks {
		result.FieldsValidated++
		err := check()
		if err == nil {
			continue
		}

		result.Errors = append(result.Errors, err)
		if err.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
			continue
		}

		result.WarningCount++
		if v.options.TreatWarningsAsErrors {
			result.IsValid = false
		}
	}

	return result
}

type check func() *ValidationError

func (v *Validator) documentChecks(inv *dte.ParsedInvoice) []check {
	return []check{
		func() *ValidationError { return validateRUT("RUTEmisor", inv.SupplierRUT) },
		func() *ValidationError { return validateRUT("RUTRecep", inv.ReceiverRUT) },
		func() *ValidationError { return validateDate("FchEmis", inv.IssueDate) },
		func() *ValidationError { return validateDate("FchVenc", inv.DueDate) },
		func() *ValidationError { return validateDueDate(inv.IssueDate, inv.DueDate) },
		func() *ValidationError { return validateDocType(inv.DocType) },
		func() *ValidationError { return validateFolio(inv.Folio) },
		func() *ValidationError { return validateAmount("MntNeto", inv.NetAmount) },
		func() *ValidationError { return validateAmount("MntExe", inv.ExemptAmount) },
		func() *ValidationError { return validateAmount("IVA", inv.VATAmount) },
		func() *ValidationError { return validateAmount("MntTotal", inv.TotalAmount) },
		func() *ValidationError { return validateTotals(inv) },
		func() *ValidationError {
			if inv.Timbre != "" {
				return nil
			}
			return &ValidationError{Severity: SeverityWarning, Field: "TED", Rule: "timbre",
				Message: "document has no timbre, the barcode will be omitted"}
		},
	}
}

func lineChecks(item *dte.LineItem, line int) []check {
	return []check{
		func() *ValidationError { return validateNumber("QtyItem", item.Quantity, line) },
		func() *ValidationError { return validateNumber("PrcItem", item.Rate, line) },
		func() *ValidationError { return validateLineAmount(item, line) },
	}
}

// =============================================================================
// RUT VALIDATION
// =============================================================================

var rutPattern = regexp.MustCompile(`^(\d{1,8})-([\dkK])$`)

// validateRUT checks the format and the módulo 11 check digit.
func validateRUT(field, value string) *ValidationError {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), ".", "")
	m := rutPattern.FindStringSubmatch(normalized)
	if m == nil {
		return &ValidationError{Severity: SeverityError, Field: field, Value: value, Rule: "rut",
			Message: "RUT must have the form 12345678-9"}
	}

	want := CheckDigit(m[1])
	if !strings.EqualFold(m[2], want) {
		return &ValidationError{Severity: SeverityError, Field: field, Value: value, Rule: "rut",
			Message: fmt.Sprintf("invalid check digit, expected %s", want)}
	}
	return nil
}

// CheckDigit computes the módulo 11 check digit of a RUT body.
//
// EXAMPLE:
//   CheckDigit("76086428") -> "5"
//   CheckDigit("10000013") -> "K"
func CheckDigit(body string) string {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	switch dv := 11 - sum%11; dv {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(dv)
	}
}

// =============================================================================
// FIELD VALIDATORS
// =============================================================================

func validateDate(field, value string) *ValidationError {
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err != nil {
		return &ValidationError{Severity: SeverityError, Field: field, Value: value, Rule: "date",
			Message: "date must have the form YYYY-MM-DD"}
	}
	return nil
}

func validateDueDate(issue, due string) *ValidationError {
	issued, err1 := time.Parse("2006-01-02", issue)
	dueAt, err2 := time.Parse("2006-01-02", due)
	if err1 != nil || err2 != nil {
		return nil // reported by validateDate
	}
	if dueAt.Before(issued) {
		return &ValidationError{Severity: SeverityWarning, Field: "FchVenc", Value: due, Rule: "due-date",
			Message: fmt.Sprintf("due date is before issue date %s", issue)}
	}
	return nil
}

func validateDocType(code string) *ValidationError {
	if dte.KnownDocType(code) {
		return nil
	}
	return &ValidationError{Severity: SeverityWarning, Field: "TipoDTE", Value: code, Rule: "doc-type",
		Message: "unknown document type"}
}

func validateFolio(value string) *ValidationError {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return &ValidationError{Severity: SeverityError, Field: "Folio", Value: value, Rule: "folio",
			Message: "folio must be a positive integer"}
	}
	return nil
}

// validateAmount accepts empty text as zero.
func validateAmount(field, value string) *ValidationError {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return &ValidationError{Severity: SeverityError, Field: field, Value: value, Rule: "amount",
			Message: "amount must be an integer"}
	}
	return nil
}

// validateTotals compares MntTotal with net + exempt + VAT, allowing the
// withheld and additional taxes to be added or subtracted.
func validateTotals(inv *dte.ParsedInvoice) *ValidationError {
	amount := func(s string) (int64, bool) {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}

	net, ok1 := amount(inv.NetAmount)
	exempt, ok2 := amount(inv.ExemptAmount)
	vat, ok3 := amount(inv.VATAmount)
	total, ok4 := amount(inv.TotalAmount)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil // reported by validateAmount
	}

	var taxes int64
	for _, tax := range inv.Taxes {
		n, ok := amount(tax.Amount)
		if !ok {
			return nil
		}
		taxes += n
	}

	base := net + exempt + vat
	if total == base || total == base+taxes || total == base-taxes {
		return nil
	}
	return &ValidationError{Severity: SeverityWarning, Field: "MntTotal", Value: inv.TotalAmount, Rule: "totals",
		Message: fmt.Sprintf("total does not match net + exempt + VAT (%d)", base)}
}

func validateNumber(field, value string, line int) *ValidationError {
	if _, err := decimal.NewFromString(strings.TrimSpace(value)); err != nil {
		return &ValidationError{Severity: SeverityError, Field: field, Value: value, Rule: "number",
			Message: "value is not a number", Line: line}
	}
	return nil
}

// validateLineAmount accepts a difference of one peso for rounding.
func validateLineAmount(item *dte.LineItem, line int) *ValidationError {
	if strings.TrimSpace(item.Amount) == "" {
		return nil
	}
	qty, err1 := decimal.NewFromString(strings.TrimSpace(item.Quantity))
	rate, err2 := decimal.NewFromString(strings.TrimSpace(item.Rate))
	amount, err3 := decimal.NewFromString(strings.TrimSpace(item.Amount))
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}

	expected := qty.Mul(rate).Truncate(0)
	if expected.Sub(amount).Abs().GreaterThan(decimal.NewFromInt(1)) {
		return &ValidationError{Severity: SeverityWarning, Field: "MontoItem", Value: item.Amount, Rule: "line-amount",
			Message: fmt.Sprintf("line amount differs from quantity x price (%s)", expected.String()), Line: line}
	}
	return nil
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation completed with %d finding(s):\n\n", len(errors))
	for i, err := range errors {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}
	return builder.String()
}
