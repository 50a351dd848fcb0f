package model

import "strings"

// PhoneDigits normalizes a phone number to digits only, dropping a leading
// US country code when the result is 11 digits. Stored alongside the raw
// phone so inbound webhook routing can suffix-match regardless of formatting.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
