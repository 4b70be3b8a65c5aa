// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"strings"
	"unicode"
)

// Kebab converts s to lower dash-case, splitting words at separators,
// lower-to-upper transitions, acronym ends and letter/digit boundaries:
// "billing-InvoiceList" and "billing_invoice list" both become
// "billing-invoice-list", "XMLParser2" becomes "xml-parser-2".
func Kebab(s string) string {
	return strings.Join(words(s), "-")
}

// FullName is the canonical name a component can be requested by.
func FullName(entity, dir string) string {
	return Kebab(entity + "-" + dir)
}

func words(s string) []string {
	runes := []rune(s)
	var (
		out  []string
		word []rune
	)
	flush := func() {
		if len(word) > 0 {
			out = append(out, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(word) > 0 {
			prev := word[len(word)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		word = append(word, r)
	}
	flush()
	return out
}
