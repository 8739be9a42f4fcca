package accessmethods

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/catalog-gateway/internal/backend"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
	"github.com/mohammed-shakir/catalog-gateway/internal/logger"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
	"github.com/mohammed-shakir/catalog-gateway/internal/updates"
)

const (
	TitleProviders     = "Error retrieving providers"
	TitleAccessMethods = "Error retrieving access methods"
	ErrorMessage       = "There was a problem completing the request"

	KindAddAccessMethods = "add_access_methods"
)

// Result is the resolved set of methods for one collection. It is also the
// effect handed to the update sink.
type Result struct {
	CollectionID         string  `json:"collectionId"`
	Methods              Methods `json:"methods"`
	SelectedAccessMethod string  `json:"selectedAccessMethod,omitempty"`
	OrderCount           *int    `json:"orderCount,omitempty"`
}

func (Result) Kind() string { return KindAddAccessMethods }
func (r Result) Key() string { return r.CollectionID }

// Batch holds per-collection outcomes in request order. Deferred lists
// collections whose metadata is not cached yet; callers retry them later.
type Batch struct {
	Results  []Result        `json:"collections"`
	Errors   []updates.Error `json:"errors"`
	Deferred []string        `json:"deferred,omitempty"`
}

type Request struct {
	State         state.AppState
	CollectionIDs []string
}

type Resolver struct {
	api       backend.API
	sink      updates.Sink
	workers   int
	threshold int
	logger    *slog.Logger
}

type Option func(*Resolver)

func WithSink(s updates.Sink) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sink = s
		}
	}
}

func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithChunkThreshold(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.threshold = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResolver(api backend.API, opts ...Option) *Resolver {
	r := &Resolver{
		api:       api,
		sink:      updates.Nop{},
		workers:   8,
		threshold: DefaultChunkThreshold,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type outcome struct {
	result   *Result
	err      *updates.Error
	deferred bool
}

// Resolve fans out one resolution per collection. A failure for one
// collection is reported in Batch.Errors and never stops its siblings.
// Unauthenticated requests and empty id lists do no work.
func (r *Resolver) Resolve(ctx context.Context, req Request) Batch {
	st := req.State
	b := Batch{Results: []Result{}, Errors: []updates.Error{}}
	if st.AuthToken == "" || len(req.CollectionIDs) == 0 {
		return b
	}

	providers := sync.OnceValues(func() ([]state.Provider, error) {
		if len(st.Providers) > 0 {
			return st.Providers, nil
		}
		return r.api.Providers(ctx, st.AuthToken)
	})

	outcomes := make([]outcome, len(req.CollectionIDs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, id := range req.CollectionIDs {
		g.Go(func() error {
			outcomes[i] = r.resolveOne(logger.WithCollectionID(ctx, id), st, id, providers)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		switch {
		case o.deferred:
			b.Deferred = append(b.Deferred, req.CollectionIDs[i])
		case o.err != nil:
			b.Errors = append(b.Errors, *o.err)
			r.apply(ctx, *o.err)
		case o.result != nil:
			b.Results = append(b.Results, *o.result)
			r.apply(ctx, *o.result)
		}
	}
	return b
}

func (r *Resolver) apply(ctx context.Context, e updates.Effect) {
	if err := r.sink.Apply(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "apply update effect", "kind", e.Kind(), "collection_id", e.Key(), "err", err)
	}
}

func (r *Resolver) resolveOne(
	ctx context.Context,
	st state.AppState,
	id string,
	providers func() ([]state.Provider, error),
) outcome {
	log := r.logger

	entry, ok := st.Collection(id)
	if !ok {
		observability.IncAccessMethodResolution("deferred")
		log.DebugContext(ctx, "collection metadata not cached; deferring")
		return outcome{deferred: true}
	}

	list, err := providers()
	if err != nil {
		observability.IncAccessMethodResolution("provider_error")
		log.WarnContext(ctx, "provider lookup failed", "err", err)
		return scopedError(id, TitleProviders)
	}
	var provider state.Provider
	if dc := entry.Metadata.DataCenter; dc != "" {
		p, found := state.FindProvider(list, dc)
		if !found {
			observability.IncAccessMethodResolution("provider_error")
			log.WarnContext(ctx, "no provider for data center", "data_center", dc)
			return scopedError(id, TitleProviders)
		}
		provider = p
	}

	tags := entry.Metadata.Tags
	online := tags.OnlineAccess()
	if online && !tags.HasOrderService() {
		observability.IncAccessMethodResolution("download_only")
		return outcome{result: &Result{
			CollectionID:         id,
			Methods:              Methods{{Name: string(KindDownload), Method: NewDownload(true)}},
			SelectedAccessMethod: string(KindDownload),
		}}
	}

	resp, err := r.api.AccessMethods(ctx, st.AuthToken, backend.AccessMethodsRequest{
		CollectionID:       id,
		CollectionProvider: provider,
		Tags:               tags,
		OnlineAccessFlag:   online,
		OrderCapable:       tags.HasOrderService(),
		OptionDefinitions:  tags.OptionDefinitions(),
	})
	if err != nil {
		observability.IncAccessMethodResolution("access_method_error")
		log.WarnContext(ctx, "access methods request failed", "err", err)
		return scopedError(id, TitleAccessMethods)
	}
	methods, err := Decode(resp.AccessMethods)
	if err != nil {
		observability.IncAccessMethodResolution("access_method_error")
		log.WarnContext(ctx, "access methods response malformed", "err", err)
		return scopedError(id, TitleAccessMethods)
	}

	res := &Result{CollectionID: id, Methods: methods}
	res.SelectedAccessMethod = selectDefault(res.Methods, resp.SelectedAccessMethod)
	if res.SelectedAccessMethod == string(KindDownload) && len(res.Methods) == 1 {
		res.Methods[0].Method = res.Methods[0].Method.markValid()
	}

	pc := st.Project.Collection(id)
	if orders := methods.Orders(); len(orders) == 1 && ShouldAttachOrderCount(pc, entry.Granules.Hits, r.threshold) {
		n := ChunkCount(pc, entry.Granules.Hits, r.threshold)
		res.OrderCount = &n
		observability.ObserveOrderChunks(n)
	}

	observability.IncAccessMethodResolution("resolved")
	return outcome{result: res}
}

// selectDefault picks the default method:
//  1. the upstream selection, when it names a returned method;
//  2. otherwise the only returned method, when it is of a known kind;
//  3. otherwise nothing, leaving the choice to the user.
func selectDefault(ms Methods, upstream string) string {
	if upstream != "" {
		if _, ok := ms.Get(upstream); ok {
			return upstream
		}
	}
	if len(ms) == 1 && ms[0].Method.Kind != KindUnknown {
		return ms[0].Name
	}
	return ""
}

func scopedError(id, title string) outcome {
	return outcome{err: &updates.Error{Title: title, Message: ErrorMessage, CollectionID: id}}
}
