package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/crewkit/crewkit/comms"
)

// events streams bus notices to the client as server-sent events until
// the connection closes. A session query parameter scopes the stream to
// one conversation.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan comms.Notice, 64)
	unsubscribe := s.bus.Subscribe(r.URL.Query().Get("session"), func(_ context.Context, n comms.Notice) {
		select {
		case ch <- n:
		default: // drop when the client cannot keep up
		}
	})
	defer unsubscribe()

	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-ch:
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, data)
			flusher.Flush()
		}
	}
}
