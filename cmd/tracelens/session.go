package main

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tracelens/tracelens/internal/session"
	"github.com/tracelens/tracelens/internal/storageutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

type (
	postTraceBody struct {
		// Object is the artifact object name inside the bucket.
		Object string `json:"object"`
		// URL fetches a remote artifact into the bucket first.
		URL string `json:"url"`
	}

	postTraceResponse struct {
		SessionID  string  `json:"session_id"`
		DurationMs float64 `json:"duration_ms"`
		Events     int     `json:"events"`
		Samples    int     `json:"samples"`
	}

	analysisSummary struct {
		SessionID  string  `json:"session_id"`
		Object     string  `json:"object"`
		DurationMs float64 `json:"duration_ms"`
		Events     int     `json:"events"`
		Samples    int     `json:"samples"`
	}
)

func (e *environment) postTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	var body postTraceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	objectName := body.Object
	if body.URL != "" {
		if objectName == "" {
			objectName = path.Join("fetched", uuid.New().String())
		}
		if err := e.downloader.FetchToBucket(ctx, body.URL, e.artifacts, objectName); err != nil {
			if hub != nil {
				hub.CaptureException(err)
			}
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}
	if objectName == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var artifact tracesource.Artifact
	err := storageutil.UnmarshalCompressed(ctx, e.artifacts, objectName, &artifact)
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s := session.New(artifact.Source())
	e.sessions.Add(s)
	log.Info().
		Str("session_id", s.ID).
		Str("object", objectName).
		Float64("duration_ms", s.Source.DurationMs()).
		Msg("trace session opened")

	e.publishSummary(analysisSummary{
		SessionID:  s.ID,
		Object:     objectName,
		DurationMs: s.Source.DurationMs(),
		Events:     len(artifact.Events),
		Samples:    len(artifact.Samples),
	})

	writeJSON(w, hub, postTraceResponse{
		SessionID:  s.ID,
		DurationMs: s.Source.DurationMs(),
		Events:     len(artifact.Events),
		Samples:    len(artifact.Samples),
	})
}

func (e *environment) deleteTrace(w http.ResponseWriter, r *http.Request) {
	ps := httprouter.ParamsFromContext(r.Context())
	e.sessions.Remove(ps.ByName("session_id"))
	w.WriteHeader(http.StatusNoContent)
}

// publishSummary emits a fire-and-forget analysis summary for downstream
// monitoring. Publishing never fails the request.
func (e *environment) publishSummary(s analysisSummary) {
	if e.analysisWriter == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		sentry.CaptureException(err)
		return
	}
	err = e.analysisWriter.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(s.SessionID),
		Value: b,
	})
	if err != nil {
		log.Err(err).Str("session_id", s.SessionID).Msg("failed to publish analysis summary")
	}
}
