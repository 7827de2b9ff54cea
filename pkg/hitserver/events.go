package hitserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// long-lived server-sent events stream: one "data:" frame per accepted
// change, plus a periodic comment frame to keep the connection alive
// through proxies. each connection gets its own subscriber; events
// broadcast before a client connected are not replayed.
func (h *handlers) eventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// subscribe before acking the connection, so a client that has seen our
	// 200 can rely on receiving every event broadcast from then on
	subscriber := h.hub.Subscribe()
	defer subscriber.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.metrics.subscribers.Inc()
	defer h.metrics.subscribers.Dec()

	keepAlive := time.NewTicker(h.keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done(): // client hung up
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-subscriber.C:
			if !open {
				return
			}

			serialized, err := json.Marshal(event)
			if err != nil {
				h.logl.Error.Printf("serialize event: %v", err)
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", serialized)
			flusher.Flush()
		}
	}
}
