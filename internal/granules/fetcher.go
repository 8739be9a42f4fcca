package granules

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/request"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/logger"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
	"github.com/mohammed-shakir/catalog-gateway/internal/updates"
)

const (
	TitleGranules = "Error retrieving granules"
	ErrorMessage  = "There was a problem completing the request"
)

// Batch mirrors the per-collection outcome of a project granule fetch.
// Skipped lists collections with no cached metadata.
type Batch struct {
	Results []ProjectGranules `json:"collections"`
	Errors  []updates.Error   `json:"errors"`
	Skipped []string          `json:"skipped,omitempty"`
}

// Fetcher searches granules for every collection of a project. Catalog
// collections are searched with the caller's credential; CWIC collections
// go through the backing API anonymously.
type Fetcher struct {
	exec    executor.Interface
	cmr     *request.Builder
	api     *request.Builder
	sink    updates.Sink
	workers int
	logger  *slog.Logger
}

type FetcherOption func(*Fetcher)

func WithFetcherSink(s updates.Sink) FetcherOption {
	return func(f *Fetcher) {
		if s != nil {
			f.sink = s
		}
	}
}

func WithFetcherWorkers(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewFetcher(exec executor.Interface, cmr, api *request.Builder, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		exec:    exec,
		cmr:     cmr,
		api:     api,
		sink:    updates.Nop{},
		workers: 8,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type fetchOutcome struct {
	result  *ProjectGranules
	err     *updates.Error
	skipped bool
}

// FetchProjectGranules runs one search per project collection and waits for
// all of them. A failed search only affects its own collection.
func (f *Fetcher) FetchProjectGranules(ctx context.Context, st state.AppState) Batch {
	ids := st.Project.CollectionIDs
	b := Batch{Results: []ProjectGranules{}, Errors: []updates.Error{}}
	if len(ids) == 0 {
		return b
	}

	outcomes := make([]fetchOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = f.fetchOne(logger.WithCollectionID(ctx, id), st, id)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		switch {
		case o.skipped:
			b.Skipped = append(b.Skipped, ids[i])
		case o.err != nil:
			b.Errors = append(b.Errors, *o.err)
			f.apply(ctx, *o.err)
		case o.result != nil:
			b.Results = append(b.Results, *o.result)
			f.apply(ctx, *o.result)
		}
	}
	return b
}

func (f *Fetcher) apply(ctx context.Context, e updates.Effect) {
	if err := f.sink.Apply(ctx, e); err != nil {
		f.logger.WarnContext(ctx, "apply update effect", "kind", e.Kind(), "collection_id", e.Key(), "err", err)
	}
}

// URL builds the search URL for prepared params.
func (f *Fetcher) URL(ctx context.Context, p Params) string {
	set := ToSearchParams(p).ParamSet()
	if p.IsCwic {
		r := resources.CwicGranules
		return f.api.BuildParams(ctx, r.Path, set, r.PermittedKeys, r.NonIndexedKeys)
	}
	r := resources.Granules
	return f.cmr.BuildParams(ctx, r.Path, set, r.PermittedKeys, r.NonIndexedKeys)
}

func (f *Fetcher) fetchOne(ctx context.Context, st state.AppState, id string) fetchOutcome {
	log := f.logger

	p := Prepare(st, id)
	if p == nil {
		log.DebugContext(ctx, "collection metadata not cached; skipping granule search")
		return fetchOutcome{skipped: true}
	}

	url := f.URL(ctx, *p)
	var resp executor.Response
	if p.IsCwic {
		resp = f.exec.ExecuteAnonymous(ctx, url)
	} else {
		resp = f.exec.Execute(ctx, p.AuthToken, url)
	}
	if !resp.OK() {
		log.WarnContext(ctx, "granule search failed", "status", resp.StatusCode, "body", string(resp.Body))
		return fetchOutcome{err: &updates.Error{Title: TitleGranules, Message: ErrorMessage, CollectionID: id}}
	}

	pg, err := PopulateResults(id, p.IsCwic, resp.Header, resp.Body)
	if err != nil {
		log.WarnContext(ctx, "granule response malformed", "err", err)
		return fetchOutcome{err: &updates.Error{Title: TitleGranules, Message: ErrorMessage, CollectionID: id}}
	}
	pg.AddMetadataURLs(f.cmr.Host())
	return fetchOutcome{result: &pg}
}
