package observability

import (
	"strings"
	"unicode/utf8"
)

// MaskEmail keeps the first character of the local part and the domain,
// so logs stay useful without carrying full addresses.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}

// MaskIdentifier shows only the last four characters of an identifier.
func MaskIdentifier(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
