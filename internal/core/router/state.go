package router

import (
	"encoding/json"
	"net/http"

	"github.com/mohammed-shakir/catalog-gateway/internal/accessmethods"
	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/granules"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

// stateRequest is the client's view of the application state. Collection
// metadata is never taken from the client; it is loaded from the store.
type stateRequest struct {
	state.AppState
	CollectionIDs []string `json:"collectionIds,omitempty"`
}

func (h *Handlers) readState(w http.ResponseWriter, r *http.Request, ids func(stateRequest) []string) (state.AppState, []string, bool) {
	body, err := readBody(w, r)
	if err != nil {
		badRequest(w, err.Error())
		return state.AppState{}, nil, false
	}
	var req stateRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			badRequest(w, "request body is not a valid application state")
			return state.AppState{}, nil, false
		}
	}
	req.AuthToken = auth.TokenFromRequest(r)

	want := ids(req)
	st, err := state.Snapshot(r.Context(), h.Store, req.AppState, want)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "load state snapshot", "err", err)
		executor.Write(w, executor.ErrorBody(http.StatusBadGateway, titleStore, accessmethods.ErrorMessage))
		return state.AppState{}, nil, false
	}
	return st, want, true
}

// resolveAccessMethods resolves the methods of the requested collections,
// defaulting to every collection in the project.
func (h *Handlers) resolveAccessMethods(w http.ResponseWriter, r *http.Request) {
	st, ids, ok := h.readState(w, r, func(req stateRequest) []string {
		if len(req.CollectionIDs) > 0 {
			return req.CollectionIDs
		}
		return req.Project.CollectionIDs
	})
	if !ok {
		return
	}
	if st.AuthToken == "" {
		executor.Write(w, executor.ErrorBody(http.StatusUnauthorized, titleBadRequest, "a session token is required"))
		return
	}
	batch := h.Resolver.Resolve(r.Context(), accessmethods.Request{State: st, CollectionIDs: ids})
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handlers) projectGranules(w http.ResponseWriter, r *http.Request) {
	st, _, ok := h.readState(w, r, func(req stateRequest) []string {
		return req.Project.CollectionIDs
	})
	if !ok {
		return
	}
	if err := granules.ValidateSpatial(st.Query.Collection.Spatial); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Fetcher.FetchProjectGranules(r.Context(), st))
}
