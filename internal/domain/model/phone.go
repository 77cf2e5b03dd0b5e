package model

import (
	"fmt"
	"strings"

	"mpesa-commerce-bot/internal/domain"
)

const DefaultCountryCode = "254"

// NormalizePhone rewrites a subscriber number into its international form.
// Accepted: <cc>7XXXXXXXX, 07XXXXXXXX and 7XXXXXXXX. Spaces, dashes, parentheses
// and a leading plus are ignored; any other character rejects the input.
func NormalizePhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
		default:
			return "", fmt.Errorf("%w: phone contains %q", domain.ErrInvalidArgument, r)
		}
	}
	d := b.String()

	var subscriber string
	switch {
	case len(d) == len(countryCode)+9 && strings.HasPrefix(d, countryCode+"7"):
		subscriber = d[len(countryCode):]
	case len(d) == 10 && strings.HasPrefix(d, "07"):
		subscriber = d[1:]
	case len(d) == 9 && d[0] == '7':
		subscriber = d
	default:
		return "", fmt.Errorf("%w: unsupported phone format", domain.ErrInvalidArgument)
	}
	return countryCode + subscriber, nil
}
