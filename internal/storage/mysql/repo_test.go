package mysql

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClip(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "heat", 255, "heat"},
		{"exact", "abc", 3, "abc"},
		{"ascii", "abcdef", 4, "abcd"},
		{"korean by characters", strings.Repeat("가", 300), maxQuery, strings.Repeat("가", maxQuery)},
		{"mixed", "a가b나", 3, "a가b"},
		{"invalid utf8", "ok\xffok", 10, "ok�ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := clip(tc.in, tc.n)
			if got != tc.want {
				t.Fatalf("clip(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("clip produced invalid UTF-8: %q", got)
			}
		})
	}
}
