package baseline

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
)

// Engine forwards every search to the catalog.
type Engine struct {
	logger *slog.Logger
	exec   executor.Interface
}

func init() {
	scenarios.Register("baseline", newBaseline)
}

func newBaseline(d scenarios.Deps) (scenarios.Searcher, error) {
	return &Engine{logger: d.Logger, exec: d.Exec}, nil
}

func (e *Engine) Search(ctx context.Context, res resources.Resource, sessionToken, url string) executor.Response {
	e.logger.DebugContext(ctx, "baseline search", "resource", res.Name)
	return e.exec.Execute(ctx, sessionToken, url)
}
