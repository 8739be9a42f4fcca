package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	cacheiface "github.com/mohammed-shakir/catalog-gateway/internal/cache"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache/keys"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/config"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
)

const (
	scenarioName = "cache"
	StatusHeader = "X-Cache"
)

// Engine serves successful catalog responses from redis. Keys are scoped to
// the caller's credential, so the session token is verified before any lookup.
type Engine struct {
	logger *slog.Logger
	exec   executor.Interface
	verify scenarios.Verifier
	store  *cacheAdapter
	cfg    config.Config
}

func init() {
	scenarios.Register(scenarioName, newCache)
}

// creates cache scenario searcher
func newCache(d scenarios.Deps) (scenarios.Searcher, error) {
	kv := d.KV
	if kv == nil {
		rc, err := redisstore.New(context.Background(), d.Config.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		kv = rc
	}
	return &Engine{
		logger: d.Logger,
		exec:   d.Exec,
		verify: d.Verifier,
		store:  &cacheAdapter{kv: kv, timeout: d.Config.CacheOpTimeout, logger: d.Logger},
		cfg:    d.Config,
	}, nil
}

type entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

func (e *Engine) Search(ctx context.Context, res resources.Resource, sessionToken, url string) executor.Response {
	start := time.Now()

	var cred string
	if sessionToken != "" && e.verify != nil {
		c, err := e.verify.ResolveCredential(ctx, sessionToken)
		if err != nil {
			// the executor renders the auth failure
			return e.exec.Execute(ctx, sessionToken, url)
		}
		cred = c.Header()
	} else if sessionToken != "" {
		cred = sessionToken
	}

	key := keys.Response(res.Name, url, cred)
	if hit, ok := e.store.get(ctx, key); ok {
		observability.IncCacheHit(scenarioName)
		resp := hit.response(sessionToken)
		resp.Header.Set(StatusHeader, "HIT")
		e.logger.DebugContext(ctx, "cache hit",
			"resource", res.Name, "dur", time.Since(start).String())
		return resp
	}

	observability.IncCacheMiss(scenarioName)
	resp := e.exec.Execute(ctx, sessionToken, url)
	if ttl := e.cfg.TTLFor(res.Name); resp.OK() && ttl > 0 {
		e.store.set(ctx, key, resp, ttl)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(StatusHeader, "MISS")
	e.logger.DebugContext(ctx, "cache miss",
		"resource", res.Name, "status", resp.StatusCode, "dur", time.Since(start).String())
	return resp
}

// response rebuilds a cached response for the caller's session token.
func (en entry) response(sessionToken string) executor.Response {
	h := en.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if sessionToken != "" {
		h.Set(auth.SessionTokenHeader, sessionToken)
	}
	return executor.Response{StatusCode: en.Status, Header: h, Body: en.Body}
}

type cacheAdapter struct {
	kv      cacheiface.Interface
	timeout time.Duration
	logger  *slog.Logger
}

// returns context with timeout if set
func (a *cacheAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// get treats every redis failure as a miss.
func (a *cacheAdapter) get(ctx context.Context, key string) (entry, bool) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	m, err := a.kv.MGet(ctx, []string{key})
	if err != nil {
		a.log().WarnContext(ctx, "cache mget error, continuing with fetch path", "err", err)
		return entry{}, false
	}
	raw, ok := m[key]
	if !ok || len(raw) == 0 {
		return entry{}, false
	}
	var en entry
	if err := json.Unmarshal(raw, &en); err != nil {
		a.log().WarnContext(ctx, "dropping undecodable cache entry", "err", err)
		return entry{}, false
	}
	return en, true
}

func (a *cacheAdapter) set(ctx context.Context, key string, resp executor.Response, ttl time.Duration) {
	h := resp.Header.Clone()
	h.Del(auth.SessionTokenHeader)
	h.Del(StatusHeader)
	b, err := json.Marshal(entry{Status: resp.StatusCode, Header: h, Body: resp.Body})
	if err != nil {
		return
	}

	ctx, cancel := a.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := a.kv.Set(ctx, key, b, ttl); err != nil {
		a.log().WarnContext(ctx, "cache set failed", "err", err)
	}
}

func (a *cacheAdapter) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}
