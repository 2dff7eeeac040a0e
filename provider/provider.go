// Package provider defines the uniform contract for AI backends and the
// typed event stream their adapters emit.
package provider

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EventKind identifies a stream event emitted by a provider adapter.
type EventKind string

const (
	EventStart       EventKind = "start"        // stream opened
	EventText        EventKind = "text"         // visible output chunk
	EventThought     EventKind = "thought"      // reasoning chunk, not shown verbatim
	EventAgentStatus EventKind = "agent_status" // backend health/usage snapshot
	EventFinish      EventKind = "finish"       // stream completed normally
	EventError       EventKind = "error"        // stream failed; Error holds the payload
)

// AgentStatus reports backend identity and usage for one exchange.
type AgentStatus struct {
	Backend      string        `json:"backend"`
	CacheHit     bool          `json:"cache_hit"`
	Latency      time.Duration `json:"latency"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
}

// Event is a single item in a provider's response stream.
type Event struct {
	Kind      EventKind    `json:"kind"`
	MessageID string       `json:"message_id"` // correlates events of one exchange
	Text      string       `json:"text,omitempty"`
	Error     string       `json:"error,omitempty"`
	Status    *AgentStatus `json:"status,omitempty"`
}

// Send describes one outbound message: the user input plus the provider
// and model it should be executed on. Files are opaque attachment
// references resolved by the adapter.
type Send struct {
	Input    string   `json:"input"`
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// Transport executes sends against a concrete backend. Implementations
// live outside this module; the session driver only consumes the event
// channel.
type Transport interface {
	// SendMessage submits the message and returns the event stream for
	// this exchange. The channel is closed after a finish or error event.
	SendMessage(ctx context.Context, msg Send) (<-chan Event, error)

	// Reachable reports whether the transport can currently accept sends.
	Reachable() bool
}

var titler = cases.Title(language.English)

// DisplayName renders a provider name for human-facing output, e.g.
// "claude" -> "Claude", "qwen" -> "Qwen".
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return titler.String(name)
}
