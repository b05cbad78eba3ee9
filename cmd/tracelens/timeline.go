package main

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/tracelens/tracelens/internal/timeline"
)

var allLanes = []string{
	timeline.LaneGC,
	timeline.LaneCPU,
	timeline.LaneExceptions,
	timeline.LaneAlloc,
	timeline.LaneJIT,
	timeline.LaneEvents,
}

func (e *environment) getTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from := queryFloat(q, "from", 0)
	to := queryFloat(q, "to", s.Source.DurationMs())
	bucketCount := queryInt(q, "buckets", 60)

	lanes := allLanes
	if raw := q.Get("lanes"); raw != "" {
		lanes = strings.Split(raw, ",")
	}

	tl, err := timeline.Correlate(s.Source, from, to, bucketCount, lanes)
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, hub, tl)
}
