package userutil

import "testing"

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already clean", input: "alice-01", want: "alice-01"},
		{name: "windows domain login", input: `CORP\alice`, want: "CORP_alice"},
		{name: "email-shaped login", input: "alice@corp.example", want: "alice_corp.example"},
		{name: "run of separators collapses", input: "a!!??b", want: "a_b"},
		{name: "leading and trailing junk", input: "@alice!", want: "_alice_"},
		{name: "non-ascii letters", input: "ålice", want: "_lice"},
		{name: "empty", input: "", want: "unknown"},
		{name: "whitespace only", input: "   ", want: "unknown"},
		{name: "only junk", input: "!!!", want: "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUsername(tt.input); got != tt.want {
				t.Fatalf("SanitizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
