package textutil_test

import (
	"testing"

	"tunepress/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Abbey Road", "Abbey Road"},
		{"invalid runes removed", `AC/DC: Back * In <Black>?`, "ACDC Back In Black"},
		{"exclamation stripped", "Help! ！", "Help"},
		{"whitespace collapsed", "  So   Far\tAway ", "So Far Away"},
		{"trailing dots trimmed", "Vol. 2...", "Vol. 2"},
		{"empty becomes placeholder", `"*?"`, "Unnamed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeFileName(tc.in); got != tc.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeFileNameIdempotent(t *testing.T) {
	inputs := []string{"Abbey Road", `AC/DC - Back In Black!`, " spaced   out ", "...", "许巍 - 时光"}
	for _, in := range inputs {
		once := textutil.SanitizeFileName(in)
		twice := textutil.SanitizeFileName(once)
		if once != twice {
			t.Fatalf("sanitize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeVote(t *testing.T) {
	if got := textutil.NormalizeVote("  The   Wall "); got != "the wall" {
		t.Fatalf("NormalizeVote = %q", got)
	}
	if textutil.NormalizeVote("ABC") != textutil.NormalizeVote("abc") {
		t.Fatal("NormalizeVote should be case-insensitive")
	}
}
