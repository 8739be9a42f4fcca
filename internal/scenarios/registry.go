// Package scenarios selects how catalog searches are served: straight
// through to the catalog, or through a shared response cache.
package scenarios

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/config"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
)

// Searcher serves one catalog search. The response is always populated.
type Searcher interface {
	Search(ctx context.Context, res resources.Resource, sessionToken, url string) executor.Response
}

// Verifier resolves a session token into the credential it carries.
type Verifier interface {
	ResolveCredential(ctx context.Context, sessionToken string) (auth.Credential, error)
}

type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Exec     executor.Interface
	Verifier Verifier
	// KV backs the cache scenario. When nil it dials Config.RedisAddr.
	KV cache.Interface
}

type Factory func(d Deps) (Searcher, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func New(name string, d Deps) (Searcher, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if f, ok := reg[name]; ok {
		return f(d)
	}
	if f, ok := reg["baseline"]; ok {
		d.Logger.Warn("unknown scenario; falling back to baseline", "scenario", name)
		return f(d)
	}
	return nil, fmt.Errorf("no factory for scenario %q and no baseline registered", name)
}
