package session

import "strings"

// quotaMarkers are matched case-insensitively against provider error
// payloads. Best-effort: providers with unusual throttling wording will
// not be detected.
var quotaMarkers = []string{
	"429",
	"quota",
	"rate_limit",
	"rate limit",
	"resource_exhausted",
	"too many requests",
	"request limit",
}

// IsQuotaError reports whether an error payload looks like a transient
// rate or usage limit rejection rather than a permanent failure.
func IsQuotaError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// placeholderSuffix marks model ids that stand in for "let the provider
// decide" and must not be carried across a provider switch.
const placeholderSuffix = "-default"

// NormalizeModelID validates a carried-over model id. It returns the id
// unchanged when it is an explicit model, and "" when it is blank, a
// generic alias ("auto", "default", "none"), or a placeholder id ending
// in "-default".
func NormalizeModelID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	switch strings.ToLower(id) {
	case "auto", "default", "none":
		return ""
	}
	if strings.HasSuffix(strings.ToLower(id), placeholderSuffix) {
		return ""
	}
	return id
}
