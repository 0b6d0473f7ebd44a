// Package numwords spells out integer amounts, as printed in the
// "SON: ..." line of an invoice.
//
// Only Spanish is supported. The long scale is used (millón, billón), so
// 10^9 reads "mil millones" and 10^12 reads "un billón".
package numwords

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrNumberToWords is returned for unsupported languages or magnitudes.
var ErrNumberToWords = errors.New("number to words")

// Limit is the first magnitude that cannot be spelled out (one trillón).
const Limit int64 = 1_000_000_000_000_000_000

var units = [...]string{
	"cero", "uno", "dos", "tres", "cuatro", "cinco", "seis", "siete", "ocho", "nueve",
	"diez", "once", "doce", "trece", "catorce", "quince", "dieciséis", "diecisiete", "dieciocho", "diecinueve",
	"veinte", "veintiuno", "veintidós", "veintitrés", "veinticuatro", "veinticinco", "veintiséis", "veintisiete", "veintiocho", "veintinueve",
}

var tens = [...]string{
	"", "", "", "treinta", "cuarenta", "cincuenta", "sesenta", "setenta", "ochenta", "noventa",
}

var hundreds = [...]string{
	"", "ciento", "doscientos", "trescientos", "cuatrocientos", "quinientos",
	"seiscientos", "setecientos", "ochocientos", "novecientos",
}

// Cardinal spells n in the language named by lang (a BCP 47 tag such as
// "es" or "es-CL").
func Cardinal(n int64, lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("%w: invalid language %q: %v", ErrNumberToWords, lang, err)
	}
	if base, _ := tag.Base(); base.String() != "es" {
		return "", fmt.Errorf("%w: unsupported language %q", ErrNumberToWords, lang)
	}
	if n >= Limit || n <= -Limit {
		return "", fmt.Errorf("%w: %d out of range", ErrNumberToWords, n)
	}

	if n < 0 {
		return "menos " + spanish(-n), nil
	}
	return spanish(n), nil
}

// Upper is Cardinal upper-cased, the form printed on invoices.
func Upper(n int64, lang string) (string, error) {
	words, err := Cardinal(n, lang)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(words), nil
}

func spanish(n int64) string {
	if n == 0 {
		return units[0]
	}

	const million = 1_000_000
	const billion = million * million

	var parts []string

	if b := n / billion; b > 0 {
		if b == 1 {
			parts = append(parts, "un billón")
		} else {
			parts = append(parts, belowMillion(b, true)+" billones")
		}
	}
	if m := (n % billion) / million; m > 0 {
		if m == 1 {
			parts = append(parts, "un millón")
		} else {
			parts = append(parts, belowMillion(m, true)+" millones")
		}
	}
	if rest := n % million; rest > 0 {
		parts = append(parts, belowMillion(rest, false))
	}

	return strings.Join(parts, " ")
}

// belowMillion spells 1..999999. With short set, a trailing "uno" is
// shortened to "un" because a noun follows ("un millón", "veintiún mil").
func belowMillion(n int64, short bool) string {
	var parts []string

	if th := n / 1000; th > 0 {
		if th == 1 {
			parts = append(parts, "mil")
		} else {
			parts = append(parts, belowThousand(th, true)+" mil")
		}
	}
	if rest := n % 1000; rest > 0 {
		parts = append(parts, belowThousand(rest, short))
	}

	return strings.Join(parts, " ")
}

func belowThousand(n int64, short bool) string {
	if n == 100 {
		return "cien"
	}

	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, hundreds[h])
	}
	if rest := n % 100; rest > 0 {
		parts = append(parts, belowHundred(rest, short))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int64, short bool) string {
	if n < 30 {
		switch {
		case short && n == 1:
			return "un"
		case short && n == 21:
			return "veintiún"
		}
		return units[n]
	}

	word := tens[n/10]
	if u := n % 10; u > 0 {
		unit := units[u]
		if short && u == 1 {
			unit = "un"
		}
		word += " y " + unit
	}
	return word
}
