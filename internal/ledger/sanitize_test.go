package ledger

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain", "Moon Cat", "Moon Cat", true},
		{"html stripped", "<b>Moon</b> Cat", "Moon Cat", true},
		{"whitespace collapsed", "  Moon \n\t Cat  ", "Moon Cat", true},
		{"script artifact next_f", `self.__next_f.push([1,"x"])`, "", false},
		{"script artifact push", `window.data.push([42])`, "", false},
		{"too short", "A", "", false},
		{"too long", strings.Repeat("A", 51), "", false},
		{"empty after strip", "<div></div>", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SanitizeName(tc.raw)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("SanitizeName(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestFallbackName(t *testing.T) {
	if got := FallbackName("TKN", "0x1234"); got != "TKN" {
		t.Fatalf("FallbackName with symbol = %q, want TKN", got)
	}
	if got := FallbackName("", "0x1234567890abcdef"); got != "0x12345678" {
		t.Fatalf("FallbackName without symbol = %q, want 0x12345678", got)
	}
}
