// Package mock provides a scripted transport for testing.
package mock

import (
	"context"
	"sync"

	"github.com/crewkit/crewkit/provider"
)

// Transport implements provider.Transport with scripted event sequences.
// Each SendMessage consumes the next script in order; after the scripts
// run out, a minimal successful exchange is replayed.
type Transport struct {
	mu      sync.Mutex
	scripts [][]provider.Event
	idx     int
	sends   []provider.Send
	offline bool
}

// New creates a Transport that replays the given scripts.
func New(scripts ...[]provider.Event) *Transport {
	return &Transport{scripts: scripts}
}

// SetOffline toggles reachability.
func (m *Transport) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Reachable reports whether the transport accepts sends.
func (m *Transport) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.offline
}

// Sends returns a copy of every message submitted so far.
func (m *Transport) Sends() []provider.Send {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Send, len(m.sends))
	copy(out, m.sends)
	return out
}

// SendMessage records the send and replays the next script on the
// returned channel.
func (m *Transport) SendMessage(_ context.Context, msg provider.Send) (<-chan provider.Event, error) {
	m.mu.Lock()
	m.sends = append(m.sends, msg)
	var script []provider.Event
	if m.idx < len(m.scripts) {
		script = m.scripts[m.idx]
		m.idx++
	} else {
		script = []provider.Event{
			{Kind: provider.EventStart},
			{Kind: provider.EventText, Text: "ok"},
			{Kind: provider.EventFinish},
		}
	}
	m.mu.Unlock()

	ch := make(chan provider.Event, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}
