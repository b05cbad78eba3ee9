package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/tracelens/tracelens/internal/snapshot"
)

const defaultSnapshotWindowMs = 500

func (e *environment) getSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	at := queryFloat(q, "at", 0)
	window := queryFloat(q, "window", defaultSnapshotWindowMs)
	if window <= 0 {
		window = defaultSnapshotWindowMs
	}

	snap, err := snapshot.At(s.Source, at, window)
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, hub, snap)
}
