package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/tracelens/tracelens/internal/tracesource"
)

const streamProgressEvery = 10_000

// streamEvents exports the full event stream as newline-delimited JSON.
// Consumer liveness is checked between chunks: a disconnect stops the
// export early without error. Progress lines are advisory logging only.
func (e *environment) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	count := 0
	err := s.Source.ForEachEvent(func(event tracesource.RuntimeEvent) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := enc.Encode(event); err != nil {
			// Usually a closed connection; stop without failing.
			return false
		}
		count++
		if count%streamProgressEvery == 0 {
			if canFlush {
				flusher.Flush()
			}
			log.Debug().
				Str("session_id", s.ID).
				Int("events", count).
				Msg("event export progress")
		}
		return true
	})
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		return
	}
	if canFlush {
		flusher.Flush()
	}
}
