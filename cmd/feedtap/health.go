package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/livefeed/internal/connection"
	"github.com/rickgao/livefeed/internal/recorder"
	"github.com/rickgao/livefeed/internal/relay"
)

// statsSource is satisfied by *connection.Manager.
type statsSource interface {
	Stats() connection.Stats
}

// newHealthHandler reports connection state and sink counters. rec and rly
// may be nil when those sinks are disabled.
func newHealthHandler(feed statsSource, rec *recorder.Recorder, rly *relay.Relay) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s := feed.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Components: make(map[string]any),
		}

		switch s.State {
		case connection.StateOpen:
			health.Status = "healthy"
		case connection.StateConnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		health.Components["feed"] = map[string]any{
			"state":           s.State.String(),
			"attempts":        s.Attempts,
			"subscribers":     s.Subscribers,
			"opens":           s.Opens,
			"open_failures":   s.OpenFailures,
			"closures":        s.Closures,
			"frames":          s.Frames,
			"decode_failures": s.DecodeFailures,
			"events":          s.Events,
		}
		if rec != nil {
			health.Components["recorder"] = rec.Stats()
		}
		if rly != nil {
			health.Components["relay"] = rly.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
