package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// HandleEvents streams the UI state as server-sent events, one "state" event per change
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for st := range h.controller.Subscribe(r.Context()) {
		data, err := json.Marshal(st)
		if err != nil {
			slog.Error("Unable to encode state", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			slog.Debug("Event stream closed", "err", err)
			return
		}
		flusher.Flush()
	}
}
