package calls

import (
	"regexp"
	"strings"
)

var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NormalizeAddress trims the input and coerces it toward E.164: a leading "0" becomes "+",
// a leading "+" is kept, anything else gets "+" prepended. Idempotent.
func NormalizeAddress(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "0"):
		return "+" + s[1:]
	default:
		return "+" + s
	}
}

// ValidateAddress normalizes raw and checks the E.164 shape.
func ValidateAddress(raw string) (string, error) {
	n := NormalizeAddress(raw)
	if !e164Re.MatchString(n) {
		return "", ErrInvalidPhoneNumber
	}
	return n, nil
}
