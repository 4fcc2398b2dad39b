package courier

import "strings"

const countryCode = "880"

// NormalizePhone rewrites a recipient phone number into the local 11-digit
// format: non-digits stripped, the 880 country code and trunk zero removed,
// then re-prefixed with zero and capped at ten following digits.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	number = strings.TrimPrefix(number, countryCode)
	number = strings.TrimPrefix(number, "0")
	if len(number) > 10 {
		number = number[:10]
	}
	return "0" + number
}
