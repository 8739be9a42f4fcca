package router

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/querystring"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/request"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/transform"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/granules"
)

// collections proxies a collection search, decorates the response and
// caches the metadata of every returned collection when the search used the
// default tag set.
func (h *Handlers) collections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := resources.ForCollections(r.URL.Query().Get("ext"))

	p, ok := h.parseParams(w, r)
	if !ok {
		return
	}
	defaultTags := strings.Join(h.DefaultTags, ",")
	if _, set := p.Get("include_tags"); !set && defaultTags != "" {
		p.Put("include_tags", params.String(defaultTags))
	}
	// Only responses carrying the full default tag set may replace the shared
	// metadata; a narrowed tag list would erase capability tags.
	writeBack := res.Name == resources.Collections.Name && sameTags(p, defaultTags)

	url := h.CMR.BuildParams(ctx, res.Path, p, res.PermittedKeys, res.NonIndexedKeys)
	resp := h.Search.Search(ctx, res, auth.TokenFromRequest(r), url)

	out, err := transform.Collections(resp.StatusCode, resp.Body, h.Transform)
	if err != nil {
		h.Logger.WarnContext(ctx, "collection response not transformed", "err", err)
		executor.Write(w, resp)
		return
	}
	if writeBack && len(out.Entries) > 0 {
		if err := h.Store.PutCollections(ctx, out.Entries); err != nil {
			h.Logger.WarnContext(ctx, "cache collection metadata", "count", len(out.Entries), "err", err)
		}
	}
	resp.Body = out.Body
	executor.Write(w, resp)
}

// sameTags reports whether the search requests exactly the default tag
// namespaces, in any order.
func sameTags(p *params.Set, defaultTags string) bool {
	v, ok := p.Get("include_tags")
	if !ok || defaultTags == "" {
		return false
	}
	var got []string
	if v.Kind() == params.KindArray {
		for _, item := range v.Items() {
			got = append(got, strings.Split(item.Text(), ",")...)
		}
	} else {
		got = strings.Split(v.Text(), ",")
	}
	want := strings.Split(defaultTags, ",")
	norm := func(xs []string) []string {
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if x = strings.TrimSpace(x); x != "" {
				out = append(out, x)
			}
		}
		slices.Sort(out)
		return slices.Compact(out)
	}
	return slices.Equal(norm(got), norm(want))
}

// granules proxies a granule search. The spatial filters are validated on
// the query actually sent upstream, after the allow-list has been applied.
func (h *Handlers) granules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := resources.Granules

	body, err := readBody(w, r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	url, err := h.CMR.Build(ctx, request.ForResource(body, res))
	if err != nil {
		h.Logger.DebugContext(ctx, "rejecting request body", "err", err)
		badRequest(w, err.Error())
		return
	}
	_, rawQuery, _ := strings.Cut(url, "?")
	sent, err := querystring.Decode(rawQuery)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := validateSpatialParams(sent); err != nil {
		badRequest(w, err.Error())
		return
	}
	executor.Write(w, h.Search.Search(ctx, res, auth.TokenFromRequest(r), url))
}

func (h *Handlers) parseParams(w http.ResponseWriter, r *http.Request) (*params.Set, bool) {
	body, err := readBody(w, r)
	if err == nil {
		var p *params.Set
		if p, err = request.ParseBody(body); err == nil {
			return p, true
		}
	}
	h.Logger.DebugContext(r.Context(), "rejecting request body", "err", err)
	badRequest(w, err.Error())
	return nil, false
}

// validateSpatialParams checks the spatial filters of a granule search. Each
// filter may be a single string or a list of them.
func validateSpatialParams(p *params.Set) error {
	checks := []struct {
		key   string
		parse func(string) error
	}{
		{"bounding_box", func(s string) error { _, err := granules.ParseBoundingBox(s); return err }},
		{"point", func(s string) error { _, err := granules.ParsePoint(s); return err }},
		{"polygon", func(s string) error { _, err := granules.ParsePolygon(s); return err }},
	}
	for _, c := range checks {
		v, ok := p.Get(c.key)
		if !ok {
			continue
		}
		vals := []params.Value{v}
		if v.Kind() == params.KindArray {
			vals = v.Items()
		}
		for _, item := range vals {
			if item.Kind() != params.KindString {
				return fmt.Errorf("%w: %s must be a string", granules.ErrInvalidSpatial, c.key)
			}
			if err := c.parse(item.Text()); err != nil {
				return fmt.Errorf("%s: %w", c.key, err)
			}
		}
	}
	return nil
}
