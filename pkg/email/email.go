// Package email holds address helpers shared by the email delivery client.
package email

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

var ErrInvalidAddress = errors.New("invalid email address")

// Normalize parses addr and returns the bare lowercase address.
func Normalize(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(parsed.Address), nil
}

// GreetingName turns the local part of an address into a name fit for a
// salutation: "control.room+pecs@serco.example" becomes "Control Room".
// Mailbox tags after '+' are dropped. Unusable local parts fall back to
// "team".
func GreetingName(addr string) string {
	local := addr
	if at := strings.LastIndexByte(addr, '@'); at > 0 {
		local = addr[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return "team"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
