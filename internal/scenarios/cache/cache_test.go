package cache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/config"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
)

type countingExec struct {
	calls  atomic.Int32
	status int
}

func (c *countingExec) Execute(_ context.Context, token, _ string) executor.Response {
	c.calls.Add(1)
	if c.status != 0 && c.status != http.StatusOK {
		return executor.Response{StatusCode: c.status, Body: []byte(`{"errors":["nope"]}`)}
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("CMR-Hits", "3")
	if token != "" {
		h.Set(auth.SessionTokenHeader, token)
	}
	return executor.Response{StatusCode: http.StatusOK, Header: h, Body: []byte(`{"feed":{"entry":[]}}`)}
}

func (c *countingExec) ExecuteAnonymous(ctx context.Context, url string) executor.Response {
	return c.Execute(ctx, "", url)
}

type tokenVerifier map[string]string

func (v tokenVerifier) ResolveCredential(_ context.Context, token string) (auth.Credential, error) {
	at, ok := v[token]
	if !ok {
		return auth.Credential{}, auth.ErrInvalidToken
	}
	return auth.Credential{AccessToken: at, ClientID: "gw"}, nil
}

func newEngine(t *testing.T, exec *countingExec, v scenarios.Verifier) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	cfg := config.Config{
		CacheOpTimeout:  time.Second,
		CacheTTLDefault: time.Minute,
		CacheTTLOvr:     map[string]time.Duration{"granules": 0},
	}
	s, err := scenarios.New(scenarioName, scenarios.Deps{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Exec:     exec,
		Verifier: v,
		KV:       rc,
	})
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	return s.(*Engine), mr
}

const searchURL = "https://cmr.example.gov/search/collections.json?keyword=ice"

func TestSearch_MissThenHit(t *testing.T) {
	exec := &countingExec{}
	e, _ := newEngine(t, exec, tokenVerifier{"session-a": "urs-1"})
	ctx := context.Background()

	first := e.Search(ctx, resources.Collections, "session-a", searchURL)
	if first.Header.Get(StatusHeader) != "MISS" {
		t.Fatalf("first X-Cache=%q", first.Header.Get(StatusHeader))
	}
	second := e.Search(ctx, resources.Collections, "session-a", searchURL)
	if second.Header.Get(StatusHeader) != "HIT" {
		t.Fatalf("second X-Cache=%q", second.Header.Get(StatusHeader))
	}
	if exec.calls.Load() != 1 {
		t.Fatalf("upstream calls=%d want 1", exec.calls.Load())
	}
	if string(second.Body) != string(first.Body) || second.Header.Get("CMR-Hits") != "3" {
		t.Fatalf("hit differs: %+v", second)
	}
	if second.Header.Get(auth.SessionTokenHeader) != "session-a" {
		t.Fatalf("jwt-token=%q", second.Header.Get(auth.SessionTokenHeader))
	}
}

func TestSearch_KeysAreScopedToCredential(t *testing.T) {
	exec := &countingExec{}
	e, _ := newEngine(t, exec, tokenVerifier{"session-a": "urs-1", "session-b": "urs-2"})
	ctx := context.Background()

	_ = e.Search(ctx, resources.Collections, "session-a", searchURL)
	resp := e.Search(ctx, resources.Collections, "session-b", searchURL)
	if resp.Header.Get(StatusHeader) != "MISS" {
		t.Fatal("a different credential must not see another session's entry")
	}
	if exec.calls.Load() != 2 {
		t.Fatalf("calls=%d", exec.calls.Load())
	}
}

func TestSearch_InvalidTokenSkipsCache(t *testing.T) {
	exec := &countingExec{status: http.StatusUnauthorized}
	e, mr := newEngine(t, exec, tokenVerifier{})

	resp := e.Search(context.Background(), resources.Collections, "forged", searchURL)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("nothing may be cached, keys=%v", mr.Keys())
	}
}

func TestSearch_ErrorsAreNotCached(t *testing.T) {
	exec := &countingExec{status: http.StatusBadRequest}
	e, mr := newEngine(t, exec, nil)
	ctx := context.Background()

	_ = e.Search(ctx, resources.Collections, "", searchURL)
	_ = e.Search(ctx, resources.Collections, "", searchURL)
	if exec.calls.Load() != 2 || len(mr.Keys()) != 0 {
		t.Fatalf("calls=%d keys=%v", exec.calls.Load(), mr.Keys())
	}
}

func TestSearch_ZeroTTLResourceBypassesFill(t *testing.T) {
	exec := &countingExec{}
	e, mr := newEngine(t, exec, nil)

	_ = e.Search(context.Background(), resources.Granules, "", searchURL)
	if len(mr.Keys()) != 0 {
		t.Fatalf("keys=%v", mr.Keys())
	}
}

func TestSearch_RedisDownFallsThrough(t *testing.T) {
	exec := &countingExec{}
	e, mr := newEngine(t, exec, nil)
	mr.SetError("LOADING")

	resp := e.Search(context.Background(), resources.Collections, "", searchURL)
	if resp.StatusCode != http.StatusOK || resp.Header.Get(StatusHeader) != "MISS" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestSearch_TTLApplied(t *testing.T) {
	exec := &countingExec{}
	e, mr := newEngine(t, exec, nil)
	ctx := context.Background()

	_ = e.Search(ctx, resources.Collections, "", searchURL)
	mr.FastForward(2 * time.Minute)
	_ = e.Search(ctx, resources.Collections, "", searchURL)
	if exec.calls.Load() != 2 {
		t.Fatalf("expired entry must refetch, calls=%d", exec.calls.Load())
	}
}
