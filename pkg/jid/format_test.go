package jid

import "testing"

func TestFormatForDisplayRegionGrouping(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"6281234567890", "+62 8123-4567-890"},
		{"081234567890", "+62 8123-4567-890"},
		{"6281234567890@s.whatsapp.net", "+62 8123-4567-890"},
		{"+62 812 3456 7890", "+62 8123-4567-890"},
	}
	for _, tc := range cases {
		if got := FormatForDisplay(tc.in); got != tc.want {
			t.Fatalf("FormatForDisplay(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatForDisplayFallback(t *testing.T) {
	if got := FormatForDisplay("14155550123"); got != "+14155550123" {
		t.Fatalf("unexpected fallback formatting: %q", got)
	}
}

func TestFormatForDisplayNoDigits(t *testing.T) {
	if got := FormatForDisplay("  hello  "); got != "hello" {
		t.Fatalf("inputs without digits should pass through trimmed, got %q", got)
	}
	if got := FormatForDisplay(""); got != "" {
		t.Fatalf("empty input should stay empty, got %q", got)
	}
}
