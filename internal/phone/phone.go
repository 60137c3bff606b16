// Package phone normalizes Brazilian phone numbers into the digit-only
// form the messaging transport expects.
package phone

import "strings"

// DefaultCountryPrefix is the Brazilian country code.
const DefaultCountryPrefix = "55"

// Normalize strips formatting, prepends the country prefix when absent
// and corrects the spurious extra mobile digit some booking UIs insert.
//
// A full Brazilian mobile number is 13 digits (55 + 2-digit area code +
// 9-digit subscriber). When normalization yields 14 digits and the
// digit right after the area code is a 9, that 9 is the duplicated
// mobile marker and is dropped.
//
// Short or otherwise odd inputs pass through best-effort; the transport
// is the authority on deliverability.
func Normalize(raw, countryPrefix string) string {
	if countryPrefix == "" {
		countryPrefix = DefaultCountryPrefix
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if !strings.HasPrefix(digits, countryPrefix) {
		digits = countryPrefix + digits
	}

	if len(digits) == 14 && digits[4] == '9' {
		digits = digits[:4] + digits[5:]
	}
	return digits
}
