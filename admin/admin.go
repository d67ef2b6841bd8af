// Package admin serves a small side HTTP API for operators of an rpc
// server. It is independent of the request pipeline and reads only the
// server's counters.
package admin

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/endpoint"
	"github.com/mnehpets/onerpc/server"
)

// StatsSource is implemented by *server.Server.
type StatsSource interface {
	Stats() server.Snapshot
}

// Option configures the router.
type Option func(*api)

// WithLogger sets the logger for failed responses.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *api) {
		a.log = l
	}
}

type api struct {
	src StatsSource
	log logrus.FieldLogger
}

// NewRouter returns a handler with the routes
//
//	GET /healthz  {"status":"ok"}
//	GET /stats    the server's Snapshot
//
// Unknown paths and methods get a JSON error body.
func NewRouter(src StatsSource, opts ...Option) http.Handler {
	a := &api{src: src, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(a)
	}

	r := mux.NewRouter()
	r.Handle("/healthz", a.handler(a.healthz)).Methods(http.MethodGet)
	r.Handle("/stats", a.handler(a.stats)).Methods(http.MethodGet)
	r.NotFoundHandler = a.handler(failWith(http.StatusNotFound))
	r.MethodNotAllowedHandler = a.handler(failWith(http.StatusMethodNotAllowed))
	return r
}

func (a *api) handler(fn endpoint.EndpointFunc) http.Handler {
	h := endpoint.Handler(fn, endpoint.NewAPIHeadersProcessor())
	h.Logger = a.log
	return h
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) (endpoint.Renderer, error) {
	return &endpoint.JSONRenderer{Value: map[string]string{"status": "ok"}}, nil
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) (endpoint.Renderer, error) {
	return &endpoint.JSONRenderer{Value: a.src.Stats()}, nil
}

func failWith(status int) endpoint.EndpointFunc {
	return func(w http.ResponseWriter, r *http.Request) (endpoint.Renderer, error) {
		return nil, endpoint.Error(status, "", nil)
	}
}
