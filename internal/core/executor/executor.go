// Package executor issues authenticated catalog requests and normalizes the
// outcome into a response envelope.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
)

const (
	maxBodyBytes = 64 << 20

	genericErrorMessage = "An unexpected error occurred while contacting the catalog"
)

// Response is always populated, whatever happened upstream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Interface issues catalog GETs. Execute with an empty session token is an
// anonymous request, identical to ExecuteAnonymous; it never fails with 401.
type Interface interface {
	Execute(ctx context.Context, sessionToken, url string) Response
	ExecuteAnonymous(ctx context.Context, url string) Response
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	bridge   *auth.Bridge
	upstream string
	startNow func() time.Time // for tests
}

type Option func(*Executor)

// WithUpstreamName sets the label used in upstream metrics (default "cmr").
func WithUpstreamName(name string) Option {
	return func(e *Executor) {
		if name != "" {
			e.upstream = name
		}
	}
}

func New(logger *slog.Logger, client *http.Client, bridge *auth.Bridge, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	e := &Executor{
		logger:   logger,
		client:   client,
		bridge:   bridge,
		upstream: "cmr",
		startNow: time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute resolves the session token into a catalog credential and issues a
// GET for url.
//
// Anonymous access is part of the contract: an empty session token, or an
// Executor built without a bridge, sends the request with no Echo-Token and
// no renewed jwt-token on the response, exactly as ExecuteAnonymous does.
// Callers that require an authenticated user must reject empty tokens
// before calling.
func (e *Executor) Execute(ctx context.Context, sessionToken, url string) Response {
	if sessionToken == "" || e.bridge == nil {
		return e.do(ctx, url, "", nil)
	}

	cred, err := e.bridge.ResolveCredential(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			observability.IncAuthFailure("invalid_token")
			e.logger.WarnContext(ctx, "session token rejected", "err", err)
			return errorsEnvelope(http.StatusUnauthorized, "Invalid or expired session token")
		}
		observability.IncAuthFailure("secrets")
		e.logger.ErrorContext(ctx, "credential resolution failed", "err", err)
		return genericFailure()
	}
	return e.do(ctx, url, sessionToken, &cred)
}

func (e *Executor) ExecuteAnonymous(ctx context.Context, url string) Response {
	return e.do(ctx, url, "", nil)
}

func (e *Executor) do(ctx context.Context, url, sessionToken string, cred *auth.Credential) Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.logger.ErrorContext(ctx, "build request", "err", err, "url", url)
		return genericFailure()
	}
	req.Header.Set("Accept", "application/json")
	if cred != nil {
		req.Header.Set(auth.EchoTokenHeader, cred.Header())
		req.Header.Set(auth.ClientIDHeader, cred.ClientID)
	}

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		observability.IncUpstreamFailure(e.upstream, "transport")
		e.logger.ErrorContext(ctx, "upstream request failed", "upstream", e.upstream, "err", err)
		return genericFailure()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	dur := time.Since(start)
	observability.ObserveUpstreamLatency(e.upstream, dur.Seconds())
	if err != nil {
		observability.IncUpstreamFailure(e.upstream, "transport")
		e.logger.ErrorContext(ctx, "read upstream body", "upstream", e.upstream, "err", err)
		return genericFailure()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.IncUpstreamFailure(e.upstream, "http")
		e.logger.WarnContext(ctx, "upstream error response",
			"upstream", e.upstream,
			"status", resp.StatusCode,
			"duration", dur.String())
		return Response{StatusCode: resp.StatusCode, Body: body}
	}

	h := resp.Header.Clone()
	stripHopByHop(h)
	h.Del("Content-Length")
	h.Set(auth.ExposeHeaders, auth.PropagateRenewedToken(resp.Header))
	if sessionToken != "" {
		h.Set(auth.SessionTokenHeader, sessionToken)
	}

	e.logger.DebugContext(ctx, "upstream done",
		"upstream", e.upstream,
		"status", resp.StatusCode,
		"duration", dur.String())
	return Response{StatusCode: resp.StatusCode, Header: h, Body: body}
}

// Write sends r to w, replacing any header r also sets. Bodies without a
// content type are labelled JSON.
func Write(w http.ResponseWriter, r Response) {
	for k, vs := range r.Header {
		w.Header().Del(k)
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	status := r.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	_, _ = w.Write(r.Body)
}

func genericFailure() Response {
	b, _ := json.Marshal(map[string]string{"error": genericErrorMessage})
	return Response{StatusCode: http.StatusInternalServerError, Body: b}
}

func errorsEnvelope(status int, msgs ...string) Response {
	b, _ := json.Marshal(map[string][]string{"errors": msgs})
	return Response{StatusCode: status, Body: b}
}

// ErrorBody renders a {title, message} error list.
func ErrorBody(status int, title, message string) Response {
	b, _ := json.Marshal(map[string]any{
		"errors": []map[string]string{{"title": title, "message": message}},
	})
	return Response{StatusCode: status, Body: b}
}

var hopByHop = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopByHop(h http.Header) {
	for _, f := range h.Values("Connection") {
		for name := range strings.SplitSeq(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, k := range hopByHop {
		h.Del(k)
	}
}
