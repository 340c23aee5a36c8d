package jid

import "strings"

// FormatForDisplay renders a phone number or identifier as a human-readable
// string: country code separated, then digit groups of at most four. Inputs
// with no region match fall back to the cleaned digit string prefixed with +.
// Best-effort only; inputs with no digits at all pass through trimmed.
func FormatForDisplay(raw string) string {
	return FormatForDisplayIn(raw, DefaultRegion)
}

func FormatForDisplayIn(raw string, region Region) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	digits := nonDigitPattern.ReplaceAllString(LocalPart(trimmed), "")
	if digits == "" {
		return trimmed
	}

	if strings.HasPrefix(digits, "0") {
		digits = region.CountryCode + digits[1:]
	}
	if strings.HasPrefix(digits, region.CountryCode) {
		rest := digits[len(region.CountryCode):]
		if rest == "" {
			return "+" + region.CountryCode
		}
		return "+" + region.CountryCode + " " + strings.Join(chunkDigits(rest, 4), "-")
	}

	return "+" + digits
}

// chunkDigits splits s into groups of at most size digits, left to right.
func chunkDigits(s string, size int) []string {
	groups := make([]string, 0, (len(s)+size-1)/size)
	for len(s) > size {
		groups = append(groups, s[:size])
		s = s[size:]
	}
	return append(groups, s)
}
