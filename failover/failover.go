// Package failover picks replacement providers when one stops serving.
//
// Two decision paths exist deliberately. Failover answers the offline or
// batch question "this provider failed, what is the configured next
// choice" from a static candidate table and does not look at session
// state. ResolveFallbackProvider answers the live question "which
// provider can take over right now" and filters by reported health and
// the session's exhausted set. Both are pure functions.
package failover

import (
	"sort"
	"strings"

	"github.com/crewkit/crewkit/routing"
	"github.com/crewkit/crewkit/task"
)

// Candidate is one fallback target: a provider and the model to use on it.
type Candidate struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Table maps a failed provider name to its ordered fallback candidates.
// List order encodes preference.
type Table map[string][]Candidate

// Health is a provider's live status as reported by the host application.
type Health struct {
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"` // e.g. "healthy", "degraded", "offline", "unavailable"
}

// Usable reports whether a provider in this state may receive traffic.
func (h Health) Usable() bool {
	if !h.Enabled {
		return false
	}
	switch strings.ToLower(h.Status) {
	case "offline", "unavailable":
		return false
	}
	return true
}

// DefaultTable returns the built-in fallback candidates. Every provider's
// list starts with the strongest alternative on a different backend; none
// lists the provider itself.
func DefaultTable() Table {
	return Table{
		routing.ProviderClaude: {
			{Provider: routing.ProviderGemini, Model: "gemini-2.5-pro"},
			{Provider: routing.ProviderQwen, Model: "qwen3-max"},
		},
		routing.ProviderGemini: {
			{Provider: routing.ProviderClaude, Model: "claude-sonnet-4-5"},
			{Provider: routing.ProviderQwen, Model: "qwen3-max"},
		},
		routing.ProviderQwen: {
			{Provider: routing.ProviderGemini, Model: "gemini-2.5-pro"},
			{Provider: routing.ProviderClaude, Model: "claude-sonnet-4-5"},
		},
		routing.ProviderCodex: {
			{Provider: routing.ProviderClaude, Model: "claude-sonnet-4-5"},
			{Provider: routing.ProviderGemini, Model: "gemini-2.5-pro"},
		},
	}
}

// DefaultPriority is the hand-authored order in which live fallback
// candidates are considered.
func DefaultPriority() []string {
	return []string{
		routing.ProviderClaude,
		routing.ProviderGemini,
		routing.ProviderCodex,
		routing.ProviderQwen,
	}
}

// Coordinator bundles the static table, the live priority list, and the
// routing engine used when no candidates are configured.
type Coordinator struct {
	Table    Table
	Priority []string
	Engine   *routing.Engine
}

// New returns a Coordinator with the built-in table and priority list.
func New(engine *routing.Engine) *Coordinator {
	return &Coordinator{
		Table:    DefaultTable(),
		Priority: DefaultPriority(),
		Engine:   engine,
	}
}

// Failover returns the replacement for a failed provider from the static
// table: always the first configured candidate. This path intentionally
// ignores live health and the session exhausted set. When the failed
// provider has no configured candidates, the task is re-routed through
// the rule engine instead.
func (c *Coordinator) Failover(t *task.Task, failedProvider string) Candidate {
	if candidates := c.Table[failedProvider]; len(candidates) > 0 {
		return candidates[0]
	}
	sel := c.Engine.SelectProvider(t)
	return Candidate{Provider: sel.Provider, Model: sel.Model}
}

// ResolveFallbackProvider returns the name of the provider that should
// take over from current, or "" when no usable provider remains and the
// caller must surface an error instead of retrying.
//
// Candidates must be present in health and usable, and must not be the
// current provider or in the exhausted set. The priority list is scanned
// first; if it is fully excluded, any remaining eligible provider from
// the health report is returned (in sorted name order for determinism).
func (c *Coordinator) ResolveFallbackProvider(current string, exhausted map[string]bool, health map[string]Health) string {
	eligible := func(name string) bool {
		if name == current || exhausted[name] {
			return false
		}
		h, ok := health[name]
		return ok && h.Usable()
	}

	for _, name := range c.Priority {
		if eligible(name) {
			return name
		}
	}

	rest := make([]string, 0, len(health))
	for name := range health {
		if eligible(name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	if len(rest) > 0 {
		return rest[0]
	}
	return ""
}
