package router

import (
	"context"

	"github.com/mohammed-shakir/catalog-gateway/internal/granules"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
	"github.com/mohammed-shakir/catalog-gateway/internal/updates"
)

// StoreSink writes fresh granule hit counts back to the metadata store so
// later access method resolutions chunk orders against current numbers.
// Other effects are ignored.
func StoreSink(s state.Store) updates.Sink {
	return updates.SinkFunc(func(ctx context.Context, e updates.Effect) error {
		pg, ok := e.(granules.ProjectGranules)
		if !ok {
			return nil
		}
		return s.PutGranuleHits(ctx, pg.CollectionID, pg.Hits)
	})
}
