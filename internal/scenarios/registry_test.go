package scenarios_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
	_ "github.com/mohammed-shakir/catalog-gateway/internal/scenarios/baseline"
)

type echoExec struct{ token, url string }

func (e *echoExec) Execute(_ context.Context, token, url string) executor.Response {
	e.token, e.url = token, url
	return executor.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}
}

func (e *echoExec) ExecuteAnonymous(ctx context.Context, url string) executor.Response {
	return e.Execute(ctx, "", url)
}

func TestRegistry_FallbackToBaseline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := &echoExec{}

	s, err := scenarios.New("totally-unknown", scenarios.Deps{Logger: logger, Exec: exec})
	if err != nil || s == nil {
		t.Fatalf("expected fallback to baseline, got err=%v s=%v", err, s)
	}

	resp := s.Search(context.Background(), resources.Granules, "tok", "https://cmr.example.gov/search/granules.json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if exec.token != "tok" || exec.url != "https://cmr.example.gov/search/granules.json" {
		t.Fatalf("baseline must pass through, got %+v", exec)
	}
}
