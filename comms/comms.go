// Package comms provides the in-process notice bus that routing,
// failover, and the task board publish user-facing events through.
package comms

import (
	"context"
	"time"
)

// NoticeKind identifies the kind of notice.
type NoticeKind string

const (
	KindTaskUpdate     NoticeKind = "task_update"     // task status change
	KindProviderSwitch NoticeKind = "provider_switch" // failover replaced the active provider
	KindRetryQueued    NoticeKind = "retry_queued"    // automatic retry pending
	KindWarning        NoticeKind = "warning"         // user-facing warning, e.g. no fallback left
	KindError          NoticeKind = "error"           // non-retryable error surfaced verbatim
)

// Notice is a single bus event. SessionID scopes chat notices to one
// conversation; task board notices leave it empty and are broadcast.
type Notice struct {
	ID        string            `json:"id"`
	Kind      NoticeKind        `json:"kind"`
	SessionID string            `json:"session_id,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Text      string            `json:"text,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler processes notices delivered to a subscriber.
type Handler func(ctx context.Context, n Notice)

// Bus fans notices out to subscribers. Subscribing with an empty session
// id receives everything.
type Bus interface {
	// Publish delivers the notice to matching subscribers.
	Publish(ctx context.Context, n Notice)

	// Subscribe registers a handler for notices scoped to sessionID
	// (or all notices when sessionID is empty). Returns an unsubscribe
	// function.
	Subscribe(sessionID string, handler Handler) (unsubscribe func())

	// History returns the most recent limit notices for the session.
	History(sessionID string, limit int) []Notice
}
