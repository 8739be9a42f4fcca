package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/secrets"
)

const testSecret = "secret"

type upstreamRecorder struct {
	mu         sync.Mutex
	lastQuery  string
	lastHeader http.Header
	status     int
	body       string
}

func (u *upstreamRecorder) handler(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.lastQuery = r.URL.RawQuery
	u.lastHeader = r.Header.Clone()
	status, body := u.status, u.body
	u.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("CMR-Hits", "42")
	w.Header().Set(auth.ExposeHeaders, "CMR-Hits")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (u *upstreamRecorder) snapshot() (string, http.Header) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastQuery, u.lastHeader
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	bridge := auth.New(secrets.Static(secrets.Credentials{ClientID: "edsc", JWTSecret: testSecret}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, nil, bridge)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token": map[string]any{"access_token": "access-1"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestExecute_Success_AttachesCredentialAndExposesToken(t *testing.T) {
	up := &upstreamRecorder{body: `{"feed":{"entry":[]}}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	tok := signToken(t, testSecret)
	resp := newTestExecutor(t).Execute(context.Background(), tok, srv.URL+"/search/granules.json?page_size=20")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, resp.Body)
	}
	if string(resp.Body) != `{"feed":{"entry":[]}}` {
		t.Fatalf("body=%s", resp.Body)
	}
	if got := resp.Header.Get(auth.SessionTokenHeader); got != tok {
		t.Fatalf("jwt-token header=%q", got)
	}
	if got := resp.Header.Get(auth.ExposeHeaders); got != "CMR-Hits, jwt-token" {
		t.Fatalf("expose headers=%q", got)
	}
	if resp.Header.Get("CMR-Hits") != "42" {
		t.Fatalf("upstream headers not kept: %v", resp.Header)
	}

	q, h := up.snapshot()
	if q != "page_size=20" {
		t.Fatalf("query=%q", q)
	}
	if got := h.Get(auth.EchoTokenHeader); got != "access-1:edsc" {
		t.Fatalf("Echo-Token=%q", got)
	}
	if got := h.Get(auth.ClientIDHeader); got != "edsc" {
		t.Fatalf("Client-Id=%q", got)
	}
}

func TestExecute_InvalidTokenIs401(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	resp := newTestExecutor(t).Execute(context.Background(), signToken(t, "wrong"), srv.URL)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401", resp.StatusCode)
	}
	var body struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || len(body.Errors) != 1 {
		t.Fatalf("body=%s err=%v", resp.Body, err)
	}
	if _, h := up.snapshot(); h != nil {
		t.Fatal("upstream must not be called with a rejected token")
	}
}

func TestExecute_UpstreamErrorPassesThrough(t *testing.T) {
	up := &upstreamRecorder{status: http.StatusBadRequest, body: `{"errors":["bad temporal"]}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	resp := newTestExecutor(t).Execute(context.Background(), signToken(t, testSecret), srv.URL)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
	if string(resp.Body) != `{"errors":["bad temporal"]}` {
		t.Fatalf("body=%s", resp.Body)
	}
	if resp.Header != nil {
		t.Fatalf("error path must not enrich headers: %v", resp.Header)
	}
}

func TestExecute_TransportFailureIsGeneric500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	resp := newTestExecutor(t).Execute(context.Background(), signToken(t, testSecret), url)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", resp.StatusCode)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body, &body); err != nil || body["error"] == "" {
		t.Fatalf("body=%s err=%v", resp.Body, err)
	}
}

func TestExecuteAnonymous_NoCredentialHeaders(t *testing.T) {
	up := &upstreamRecorder{body: `{}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	resp := newTestExecutor(t).Execute(context.Background(), "", srv.URL)
	if !resp.OK() {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	_, h := up.snapshot()
	if h.Get(auth.EchoTokenHeader) != "" {
		t.Fatal("anonymous request must not carry Echo-Token")
	}
	if resp.Header.Get(auth.SessionTokenHeader) != "" {
		t.Fatal("anonymous response must not carry jwt-token")
	}
}

func TestExecute_EmptyTokenIsSameAsExecuteAnonymous(t *testing.T) {
	up := &upstreamRecorder{body: `{"feed":{"entry":[]}}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	exec := newTestExecutor(t)
	viaExecute := exec.Execute(context.Background(), "", srv.URL)
	_, hExecute := up.snapshot()
	viaAnonymous := exec.ExecuteAnonymous(context.Background(), srv.URL)
	_, hAnonymous := up.snapshot()

	if viaExecute.StatusCode != viaAnonymous.StatusCode {
		t.Fatalf("status %d vs %d", viaExecute.StatusCode, viaAnonymous.StatusCode)
	}
	if string(viaExecute.Body) != string(viaAnonymous.Body) {
		t.Fatalf("body %s vs %s", viaExecute.Body, viaAnonymous.Body)
	}
	if hExecute.Get(auth.EchoTokenHeader) != "" || hAnonymous.Get(auth.EchoTokenHeader) != "" {
		t.Fatal("neither path may send Echo-Token without a session token")
	}
}
