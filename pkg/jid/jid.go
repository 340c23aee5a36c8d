package jid

import (
	"errors"
	"regexp"
	"strings"
)

// WhatsApp JID server suffixes. The suffix alone determines what kind of
// endpoint an identifier addresses.
const (
	SuffixUser      = "@s.whatsapp.net"
	SuffixGroup     = "@g.us"
	SuffixLinkedID  = "@lid"
	SuffixBroadcast = "@broadcast"
)

// Kind classifies an identifier by its server suffix.
type Kind string

const (
	KindUser      Kind = "user"
	KindGroup     Kind = "group"
	KindLinkedID  Kind = "linked_id"
	KindBroadcast Kind = "broadcast"
	KindUnknown   Kind = "unknown"
)

func (k Kind) String() string {
	return string(k)
}

// Region carries the dialing rules used by the phone-number fallback of
// Normalize. The defaults target Indonesian numbers, matching the deployed
// counterpart, but any region can be injected.
type Region struct {
	// CountryCode replaces a leading 0 and marks inputs that are already
	// internationalized.
	CountryCode string
	// MobilePrefix is the leading digit of domestic mobile numbers written
	// without the trunk 0 (e.g. "81234..." for Indonesian numbers).
	MobilePrefix string
	// DomesticMin/DomesticMax bound the typical domestic mobile length for
	// the prefix rule above.
	DomesticMin int
	DomesticMax int
}

var DefaultRegion = Region{
	CountryCode:  "62",
	MobilePrefix: "8",
	DomesticMin:  9,
	DomesticMax:  13,
}

// ErrInvalidIdentifier is matched by errors.Is for every normalization
// failure. The concrete reason travels in InvalidIdentifierError.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Reason narrows an InvalidIdentifierError for diagnostics.
type Reason string

const (
	ReasonEmptyInput Reason = "empty-input"
	ReasonNonNumeric Reason = "non-numeric"
	ReasonTooShort   Reason = "too-short"
	ReasonTooLong    Reason = "too-long"
)

type InvalidIdentifierError struct {
	Reason Reason
	Input  string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier (" + string(e.Reason) + "): " + e.Input
}

func (e *InvalidIdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// knownSuffixes is ordered: @lid must be checked before @g.us and @broadcast
// before @s.whatsapp.net so an identifier that could syntactically end with
// more than one candidate substring always resolves the same way.
var knownSuffixes = []struct {
	suffix string
	kind   Kind
}{
	{SuffixLinkedID, KindLinkedID},
	{SuffixGroup, KindGroup},
	{SuffixBroadcast, KindBroadcast},
	{SuffixUser, KindUser},
}

var (
	nonDigitPattern       = regexp.MustCompile(`[^0-9]`)
	nonDigitHyphenPattern = regexp.MustCompile(`[^0-9-]`)
	// Pure 15-17 digit strings are linked-device identifiers; 18 pure digits
	// and above belong to the group rule below.
	linkedIDPattern = regexp.MustCompile(`^[0-9]{15,17}$`)
	groupIDPattern  = regexp.MustCompile(`^[0-9]{18,}(-[0-9]+)?$`)
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)
)

// E.164 bounds for the phone-number fallback.
const (
	phoneMinDigits = 10
	phoneMaxDigits = 15
)

// IsAddressable reports whether s already ends with one of the four known
// server suffixes and can be handed to a send operation as-is.
func IsAddressable(s string) bool {
	return Classify(s) != KindUnknown
}

// Classify returns the endpoint kind of an identifier based purely on its
// suffix. It never fails; anything without a known suffix is KindUnknown.
func Classify(s string) Kind {
	for _, candidate := range knownSuffixes {
		if strings.HasSuffix(s, candidate.suffix) {
			return candidate.kind
		}
	}
	return KindUnknown
}

// LocalPart strips the matched server suffix. Identifiers without a known
// suffix pass through verbatim.
func LocalPart(s string) string {
	for _, candidate := range knownSuffixes {
		if strings.HasSuffix(s, candidate.suffix) {
			return strings.TrimSuffix(s, candidate.suffix)
		}
	}
	return s
}

// Normalize turns a raw user-supplied phone number or identifier into its
// canonical suffixed form using DefaultRegion dialing rules.
func Normalize(raw string) (string, error) {
	return NormalizeIn(raw, DefaultRegion)
}

// NormalizeIn is Normalize with explicit region rules.
//
// The rules are applied in strict priority order and the ordering is part of
// the contract: the input space is genuinely ambiguous (an 18-digit string
// could be a group id or a malformed phone number), so the earliest matching
// rule always wins.
//
//  1. Inputs already carrying a known suffix pass through unchanged.
//  2. Pure 15-17 digit strings not starting with the region country code are
//     linked-device identifiers.
//  3. Inputs reducing to ">=18 digits, optional -digits shard" (after
//     stripping everything but digits and hyphens) are group identifiers.
//  4. Everything else takes the phone-number path: strip to digits, apply
//     region normalization, validate the E.164 length bound.
func NormalizeIn(raw string, region Region) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &InvalidIdentifierError{Reason: ReasonEmptyInput, Input: raw}
	}

	if IsAddressable(trimmed) {
		return trimmed, nil
	}

	if linkedIDPattern.MatchString(trimmed) && !strings.HasPrefix(trimmed, region.CountryCode) {
		return trimmed + SuffixLinkedID, nil
	}

	if groupCandidate := nonDigitHyphenPattern.ReplaceAllString(trimmed, ""); groupIDPattern.MatchString(groupCandidate) {
		return groupCandidate + SuffixGroup, nil
	}

	cleaned := nonDigitPattern.ReplaceAllString(trimmed, "")
	if cleaned == "" {
		return "", &InvalidIdentifierError{Reason: ReasonNonNumeric, Input: raw}
	}
	cleaned = applyRegion(cleaned, region)

	switch {
	case !digitsPattern.MatchString(cleaned):
		return "", &InvalidIdentifierError{Reason: ReasonNonNumeric, Input: raw}
	case len(cleaned) < phoneMinDigits:
		return "", &InvalidIdentifierError{Reason: ReasonTooShort, Input: raw}
	case len(cleaned) > phoneMaxDigits:
		return "", &InvalidIdentifierError{Reason: ReasonTooLong, Input: raw}
	}

	return cleaned + SuffixUser, nil
}

// applyRegion rewrites a bare digit string into international form. Inputs
// already starting with the country code pass through unchanged.
func applyRegion(digits string, region Region) string {
	switch {
	case strings.HasPrefix(digits, "0"):
		return region.CountryCode + digits[1:]
	case strings.HasPrefix(digits, region.CountryCode):
		return digits
	case strings.HasPrefix(digits, region.MobilePrefix) &&
		len(digits) >= region.DomesticMin && len(digits) <= region.DomesticMax:
		return region.CountryCode + digits
	default:
		return digits
	}
}
