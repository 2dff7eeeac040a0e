package session

import "testing"

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"429 Too Many Requests", true},
		{"Error: QUOTA exceeded for project", true},
		{"rate_limit_error", true},
		{"Rate Limit reached, retry later", true},
		{"RESOURCE_EXHAUSTED", true},
		{"request limit hit for org", true},
		{"network timeout", false},
		{"connection refused", false},
		{"invalid api key", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsQuotaError(tt.msg); got != tt.want {
			t.Errorf("IsQuotaError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestNormalizeModelID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"auto", ""},
		{"AUTO", ""},
		{"Default", ""},
		{"none", ""},
		{"foo-default", ""},
		{"Claude-DEFAULT", ""},
		{"gpt-5.2-codex", "gpt-5.2-codex"},
		{"  claude-sonnet-4-5  ", "claude-sonnet-4-5"},
		{"defaulted-model", "defaulted-model"}, // suffix only, not prefix
	}
	for _, tt := range tests {
		if got := NormalizeModelID(tt.id); got != tt.want {
			t.Errorf("NormalizeModelID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
