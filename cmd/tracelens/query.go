package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"

	"github.com/tracelens/tracelens/internal/query"
)

type postQueryBody struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

func (e *environment) postQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	var body postQueryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := query.Execute(s.Source, body.Type, body.Params)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, hub, result)
}
