package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/tracelens/tracelens/internal/calltree"
	"github.com/tracelens/tracelens/internal/mathutil"
)

const (
	defaultTreeDepth = 3
	maxTreeDepth     = 16
)

func (e *environment) getCallTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	t, err := s.CallTree()
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	depth := mathutil.Clamp(queryInt(r.URL.Query(), "depth", defaultTreeDepth), 1, maxTreeDepth)
	writeJSON(w, hub, calltree.Serialize(t.Root, t.TotalMetric(), depth))
}

func (e *environment) getCallTreeChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	t, err := s.CallTree()
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	depth := mathutil.Clamp(queryInt(q, "depth", 1), 1, maxTreeDepth)
	node := calltree.NodeAtPath(t.Root, parseTreePath(q.Get("path")))
	if node == nil {
		// Out-of-range path: empty result, not an error.
		writeJSON(w, hub, &calltree.NodeDTO{})
		return
	}
	writeJSON(w, hub, calltree.Serialize(node, t.TotalMetric(), depth))
}

func (e *environment) getHotPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	t, err := s.CallTree()
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	start := calltree.NodeAtPath(t.Root, parseTreePath(r.URL.Query().Get("path")))
	if start == nil {
		writeJSON(w, hub, []calltree.HotPathStep{})
		return
	}
	writeJSON(w, hub, calltree.HotPath(start, t.TotalMetric()))
}

func (e *environment) getCallerCallee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	s, ok := e.requestSession(w, r)
	if !ok {
		return
	}

	t, err := s.CallTree()
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, hub, calltree.CallerCallee(t, r.URL.Query().Get("method")))
}
