package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/tracelens/tracelens/internal/downloader"
	"github.com/tracelens/tracelens/internal/logutil"
	"github.com/tracelens/tracelens/internal/session"
)

type environment struct {
	config ServiceConfig

	sessions   *session.Registry
	artifacts  *blob.Bucket
	downloader *downloader.Client

	analysisWriter *kafka.Writer
}

var release string

func newEnvironment(ctx context.Context) (*environment, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := environment{
		config:     config,
		sessions:   session.NewRegistry(),
		downloader: downloader.NewClient(),
	}
	e.artifacts, err = blob.OpenBucket(ctx, config.ArtifactsBucketURL)
	if err != nil {
		return nil, fmt.Errorf("opening artifacts bucket: %w", err)
	}
	if len(config.AnalysisKafkaBrokers) > 0 {
		e.analysisWriter = &kafka.Writer{
			Addr:         kafka.TCP(config.AnalysisKafkaBrokers...),
			Async:        true,
			Balancer:     kafka.CRC32Balancer{},
			BatchSize:    10,
			Topic:        config.AnalysisKafkaTopic,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	return &e, nil
}

func (e *environment) shutdown() {
	if err := e.artifacts.Close(); err != nil {
		sentry.CaptureException(err)
	}
	if e.analysisWriter != nil {
		if err := e.analysisWriter.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodPost, "/traces", e.postTrace},
		{http.MethodDelete, "/traces/:session_id", e.deleteTrace},
		{http.MethodGet, "/traces/:session_id/flat", e.getFlatTop},
		{http.MethodGet, "/traces/:session_id/calltree", e.getCallTree},
		{http.MethodGet, "/traces/:session_id/calltree/children", e.getCallTreeChildren},
		{http.MethodGet, "/traces/:session_id/hotpath", e.getHotPath},
		{http.MethodGet, "/traces/:session_id/callers", e.getCallerCallee},
		{http.MethodGet, "/traces/:session_id/timeline", e.getTimeline},
		{http.MethodGet, "/traces/:session_id/snapshot", e.getSnapshot},
		{http.MethodPost, "/traces/:session_id/query", e.postQuery},
		{http.MethodGet, "/traces/:session_id/events/stream", e.streamEvents},
		{http.MethodGet, "/health", e.getHealth},
	}

	router := httprouter.New()
	for _, route := range routes {
		router.Handler(route.method, route.path, compress(route.handler))
	}
	return router, nil
}

func main() {
	logutil.ConfigureLogger("tracelens")

	ctx := context.Background()
	env, err := newEnvironment(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              env.config.SentryDSN,
		EnableTracing:    true,
		Environment:      env.config.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", env.config.Port),
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
