// Package router maps the gateway's HTTP surface onto the catalog search
// pipeline and the batch operations.
package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/catalog-gateway/internal/accessmethods"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/request"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/transform"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
	"github.com/mohammed-shakir/catalog-gateway/internal/granules"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

const maxBodyBytes = 1 << 20

const (
	titleBadRequest = "Invalid request"
	titleStore      = "Error loading collection metadata"
)

type Deps struct {
	Logger      *slog.Logger
	Search      scenarios.Searcher
	CMR         *request.Builder
	Store       state.Store
	Resolver    *accessmethods.Resolver
	Fetcher     *granules.Fetcher
	Transform   transform.Config
	DefaultTags []string
}

type Handlers struct {
	Deps
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handlers{Deps: d}
}

// Mount registers the catalog routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Post("/collections", instrument("/collections", h.collections))
	r.Post("/granules", instrument("/granules", h.granules))
	r.Post("/projects/granules", instrument("/projects/granules", h.projectGranules))
	r.Post("/access_methods/resolve", instrument("/access_methods/resolve", h.resolveAccessMethods))
}

// instrument records request count and latency per route.
func instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Join(request.ErrInvalidBody, err)
	}
	return b, nil
}

func badRequest(w http.ResponseWriter, msg string) {
	executor.Write(w, executor.ErrorBody(http.StatusBadRequest, titleBadRequest, msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		executor.Write(w, executor.ErrorBody(http.StatusInternalServerError, "Error encoding response", err.Error()))
		return
	}
	executor.Write(w, executor.Response{StatusCode: status, Body: b})
}
