package api

import (
	"fmt"
	"net/http"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/sse"
)

func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &sse.Client{
		Msg:  make(chan sse.Event, 16),
		Repo: h.repo,
	}

	h.events.Add(client)

	apiLogger.Debug().Msg("New SSE client connected")

	defer func() {
		h.events.Delete(client)
		apiLogger.Debug().Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case event, open := <-client.Msg:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
