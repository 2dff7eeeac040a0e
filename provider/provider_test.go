package provider

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude", "Claude"},
		{"gemini", "Gemini"},
		{"qwen", "Qwen"},
		{"  codex  ", "Codex"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := DisplayName(tc.in); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
