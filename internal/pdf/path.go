package pdf

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ginjaninja78/DTE-to-PDF-conversion/internal/dte"
)

// OutputPath derives the PDF file name for a document:
//
//	{dir}/{issue date digits} {type abbreviation} {Supplier Name} {folio}.pdf
//
// The supplier name is title-cased and stripped of periods, so
// "comercial los andes s.a." becomes "Comercial Los Andes SA". Two
// documents that derive the same name overwrite each other.
func OutputPath(dir string, inv *dte.ParsedInvoice) string {
	name := strings.Join([]string{
		digits(inv.IssueDate),
		inv.DocTypeAbbrev,
		strings.ReplaceAll(TitleCase(inv.SupplierName), ".", ""),
		inv.Folio,
	}, " ")

	// A slash in a legal name would otherwise create a subdirectory.
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(name)

	return filepath.Join(dir, name+".pdf")
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest. Any non-letter starts a new run ("s.a." -> "S.A.").
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inWord := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			inWord = false
		case inWord:
			r = unicode.ToLower(r)
		default:
			r = unicode.ToUpper(r)
			inWord = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
