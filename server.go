package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type server struct {
	http *http.Server
	log  *zap.SugaredLogger
}

//NewServer returns the status server listening on addr. Metrics are served
//from gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, log *zap.SugaredLogger) *server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &server{
		http: &http.Server{
			Addr:              addr,
			Handler:           router(gatherer, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

func router(gatherer prometheus.Gatherer, log *zap.SugaredLogger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", text("hello", log)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", text("ok", log)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func text(body string, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(body)); err != nil {
			log.Errorw("error writing response body", "error", err)
		}
	}
}

//Start serves until ctx is done. Errors other than a clean shutdown are sent
//on the returned channel.
func (s *server) Start(ctx context.Context) <-chan error {
	c := make(chan error, 1)
	go func() {
		s.log.Infow("status server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c <- err
		}
		close(c)
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(sctx); err != nil {
			s.log.Errorw("status server shutdown", "error", err)
		}
	}()
	return c
}

//waitServer blocks until ctx is done or the server behind errc stops. A
//server that shut down cleanly closes errc and yields nil.
func waitServer(ctx context.Context, errc <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-errc:
		if !ok {
			return nil
		}
		return err
	}
}
