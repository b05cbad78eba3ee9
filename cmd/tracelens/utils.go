package main

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"

	"github.com/tracelens/tracelens/internal/session"
	"github.com/tracelens/tracelens/internal/tracesource"
)

func writeJSON(w http.ResponseWriter, hub *sentry.Hub, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// requestSession resolves the session_id route parameter. A missing session
// answers 404 directly and returns false.
func (e *environment) requestSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	ps := httprouter.ParamsFromContext(r.Context())
	s, ok := e.sessions.Get(ps.ByName("session_id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func queryFloat(q url.Values, name string, def float64) float64 {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func queryInt(q url.Values, name string, def int) int {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryBool(q url.Values, name string, def bool) bool {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// queryWindow builds the optional [from, to] filter, clamped to the trace
// bounds. Nil means the full trace.
func queryWindow(q url.Values, durationMs float64) *tracesource.TimeWindow {
	if q.Get("from") == "" && q.Get("to") == "" {
		return nil
	}
	from := queryFloat(q, "from", 0)
	to := queryFloat(q, "to", durationMs)
	if from < 0 {
		from = 0
	}
	if to > durationMs {
		to = durationMs
	}
	if to < from {
		from, to = to, from
	}
	return &tracesource.TimeWindow{FromMs: from, ToMs: to}
}

// parseTreePath parses a dotted child-index path like "0.2.1". Malformed
// segments yield nil, which navigates to the tree root.
func parseTreePath(raw string) []int {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ".")
	path := make([]int, 0, len(parts))
	for _, p := range parts {
		idx, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		path = append(path, idx)
	}
	return path
}
