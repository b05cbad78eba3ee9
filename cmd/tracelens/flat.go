package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/tracelens/tracelens/internal/aggregate"
	"github.com/tracelens/tracelens/internal/frameutil"
)

func (e *environment) getFlatTop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := aggregate.Options{
		Top:             queryInt(q, "top", 10),
		GroupBy:         frameutil.GroupMode(q.Get("group_by")),
		SortByInclusive: queryBool(q, "sort_by_inclusive", false),
		Window:          queryWindow(q, s.Source.DurationMs()),
	}

	result, err := aggregate.FlatTop(s.Source, opts)
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, hub, result)
}
