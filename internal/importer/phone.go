package importer

import "strings"

// PhoneNormalizer converts locally written phone numbers into E.164 form for
// a configured country. The heuristics are best-effort: scanned and hand-typed
// rosters contain OCR artefacts (the letter O for zero) and numbers written
// with or without the trunk prefix.
type PhoneNormalizer struct {
	countryCode string
}

// NewPhoneNormalizer builds a normalizer for the given country calling code
// (digits only, e.g. "92").
func NewPhoneNormalizer(countryCode string) *PhoneNormalizer {
	if countryCode == "" {
		countryCode = "92"
	}
	return &PhoneNormalizer{countryCode: countryCode}
}

// Normalize returns the E.164 representation and whether the input was
// normalizable.
func (n *PhoneNormalizer) Normalize(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == 'O' || r == 'o':
			// OCR frequently reads 0 as O.
			return '0'
		case r == '+':
			return r
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			return -1
		default:
			return 'x'
		}
	}, strings.TrimSpace(raw))
	if strings.ContainsRune(cleaned, 'x') || cleaned == "" {
		return "", false
	}

	plus := strings.HasPrefix(cleaned, "+")
	digits := strings.TrimPrefix(cleaned, "+")
	if strings.Contains(digits, "+") {
		return "", false
	}
	if !plus && strings.HasPrefix(digits, "00") {
		plus = true
		digits = strings.TrimPrefix(digits, "00")
	}

	switch {
	case plus && strings.HasPrefix(digits, n.countryCode):
		// Already international for the configured country.
	case plus && len(digits) > 10:
		// Country code looks wrong for our roster; keep the subscriber part.
		digits = n.countryCode + digits[len(digits)-10:]
	case plus:
		return "", false
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		digits = n.countryCode + digits[1:]
	case len(digits) == 10:
		digits = n.countryCode + digits
	case strings.HasPrefix(digits, n.countryCode) && len(digits) == len(n.countryCode)+10:
		// Written with country code but no plus.
	case len(digits) > 10:
		digits = n.countryCode + digits[len(digits)-10:]
	default:
		return "", false
	}

	if len(digits) != len(n.countryCode)+10 {
		return "", false
	}
	return "+" + digits, true
}
