package failover

import (
	"testing"

	"github.com/crewkit/crewkit/routing"
	"github.com/crewkit/crewkit/task"
)

func newCoordinator() *Coordinator {
	return New(routing.NewEngine())
}

func TestFailover_FirstCandidateAlways(t *testing.T) {
	c := newCoordinator()
	tk := &task.Task{Subject: "anything"}

	first := c.Failover(tk, "claude")
	for i := 0; i < 5; i++ {
		if got := c.Failover(tk, "claude"); got != first {
			t.Fatalf("Failover not deterministic: %+v vs %+v", got, first)
		}
	}
	if first.Provider == "claude" {
		t.Errorf("fallback for claude must not be claude, got %+v", first)
	}
	if first != (Candidate{Provider: "gemini", Model: "gemini-2.5-pro"}) {
		t.Errorf("Failover(claude) = %+v, want first table entry", first)
	}
}

func TestFailover_NoSelfCandidates(t *testing.T) {
	c := newCoordinator()
	for failed, candidates := range c.Table {
		for _, cand := range candidates {
			if cand.Provider == failed {
				t.Errorf("table for %s lists itself as a candidate", failed)
			}
		}
	}
}

func TestFailover_UnknownProviderReroutes(t *testing.T) {
	c := newCoordinator()
	tk := &task.Task{Subject: "Fix backend API bug"}
	got := c.Failover(tk, "no-such-provider")
	want := c.Engine.SelectProvider(tk)
	if got.Provider != want.Provider || got.Model != want.Model {
		t.Errorf("Failover = %+v, want rule engine selection %+v", got, want)
	}
}

func TestResolveFallbackProvider_PriorityAndHealth(t *testing.T) {
	c := newCoordinator()
	health := map[string]Health{
		"gemini": {Enabled: true, Status: "healthy"},
		"qwen":   {Enabled: true, Status: "offline"},
	}
	got := c.ResolveFallbackProvider("claude", map[string]bool{"claude": true}, health)
	if got != "gemini" {
		t.Errorf("ResolveFallbackProvider = %q, want gemini (qwen offline)", got)
	}
}

func TestResolveFallbackProvider_NeverCurrentOrExhausted(t *testing.T) {
	c := newCoordinator()
	health := map[string]Health{
		"claude": {Enabled: true, Status: "healthy"},
		"gemini": {Enabled: true, Status: "healthy"},
		"qwen":   {Enabled: true, Status: "healthy"},
	}
	exhausted := map[string]bool{"gemini": true}
	got := c.ResolveFallbackProvider("claude", exhausted, health)
	if got == "claude" || exhausted[got] {
		t.Errorf("ResolveFallbackProvider returned excluded provider %q", got)
	}
	if got != "qwen" {
		t.Errorf("ResolveFallbackProvider = %q, want qwen", got)
	}
}

func TestResolveFallbackProvider_OffPriorityCandidate(t *testing.T) {
	c := newCoordinator()
	// Only a provider outside the priority list is healthy.
	health := map[string]Health{
		"claude": {Enabled: true, Status: "offline"},
		"ollama": {Enabled: true, Status: "healthy"},
	}
	got := c.ResolveFallbackProvider("gemini", nil, health)
	if got != "ollama" {
		t.Errorf("ResolveFallbackProvider = %q, want ollama", got)
	}
}

func TestResolveFallbackProvider_NoneLeft(t *testing.T) {
	c := newCoordinator()
	health := map[string]Health{
		"claude": {Enabled: true, Status: "healthy"},
		"gemini": {Enabled: false, Status: "healthy"},
		"qwen":   {Enabled: true, Status: "unavailable"},
	}
	got := c.ResolveFallbackProvider("claude", map[string]bool{}, health)
	if got != "" {
		t.Errorf("ResolveFallbackProvider = %q, want empty (nothing usable)", got)
	}
}

func TestHealthUsable(t *testing.T) {
	tests := []struct {
		h    Health
		want bool
	}{
		{Health{Enabled: true, Status: "healthy"}, true},
		{Health{Enabled: true, Status: "degraded"}, true},
		{Health{Enabled: true, Status: "OFFLINE"}, false},
		{Health{Enabled: true, Status: "unavailable"}, false},
		{Health{Enabled: false, Status: "healthy"}, false},
	}
	for _, tt := range tests {
		if got := tt.h.Usable(); got != tt.want {
			t.Errorf("Usable(%+v) = %v, want %v", tt.h, got, tt.want)
		}
	}
}
