// Package transform decorates catalog collection search responses with the
// derived fields clients render, and extracts the metadata worth caching.
package transform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

const nearRealTime = "NEAR_REAL_TIME"

type Config struct {
	CMRHost          string
	ThumbnailHeight  int
	ThumbnailWidth   int
	UnavailableImage string
}

func DefaultConfig(cmrHost string) Config {
	return Config{
		CMRHost:          cmrHost,
		ThumbnailHeight:  85,
		ThumbnailWidth:   85,
		UnavailableImage: "/images/image-unavailable.svg",
	}
}

// Result is the rewritten body plus one entry per decorated collection.
type Result struct {
	Body    []byte
	Entries []state.CollectionEntry
}

// Collections rewrites a collection search response. Responses other than
// 200 are returned untouched. The collection list is read from "items" for
// UMM responses and from "feed.entry" otherwise.
func Collections(status int, body []byte, cfg Config) (Result, error) {
	if status != http.StatusOK {
		return Result{Body: body}, nil
	}
	doc, err := params.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("decode collection response: %w", err)
	}

	list, ok := entryList(doc)
	if !ok {
		return Result{Body: body}, nil
	}

	var entries []state.CollectionEntry
	for _, item := range list.Items() {
		if item.Kind() != params.KindObject {
			continue
		}
		c := item.Object()
		decorate(c, cfg)

		e, err := toEntry(c)
		if err != nil {
			return Result{}, err
		}
		if e.Metadata.ID != "" {
			entries = append(entries, e)
		}
	}

	out, err := doc.MarshalJSON()
	if err != nil {
		return Result{}, fmt.Errorf("encode collection response: %w", err)
	}
	return Result{Body: out, Entries: entries}, nil
}

func entryList(doc *params.Set) (params.Value, bool) {
	if items, ok := doc.Get("items"); ok && items.Kind() == params.KindArray {
		return items, true
	}
	feed, ok := doc.Get("feed")
	if !ok || feed.Kind() != params.KindObject {
		return params.Value{}, false
	}
	entry, ok := feed.Object().Get("entry")
	if !ok || entry.Kind() != params.KindArray {
		return params.Value{}, false
	}
	return entry, true
}

// decorate adds is_cwic and has_map_imagery when the collection carries
// tags, is_nrt when it has a data type, and thumbnail when it has an id.
func decorate(c *params.Set, cfg Config) {
	if tv, ok := c.Get("tags"); ok && tv.Kind() == params.KindObject {
		tags := tv.Object()
		_, cwicTag := tags.Get(state.TagCwicGranules)
		hasGranules, known := boolField(c, "has_granules")
		c.Put("is_cwic", params.Bool(cwicTag && known && !hasGranules))
		c.Put("has_map_imagery", params.Bool(hasExtraTag(tags, "gibs")))
	}

	if dt, ok := c.Get("collection_data_type"); ok && dt.Text() != "" {
		c.Put("is_nrt", params.Bool(dt.Text() == nearRealTime))
	}

	if id, ok := c.Get("id"); ok && id.Text() != "" {
		thumb := cfg.UnavailableImage
		if browse, _ := boolField(c, "browse_flag"); browse {
			thumb = fmt.Sprintf("%s/browse-scaler/browse_images/datasets/%s?h=%d&w=%d",
				strings.TrimRight(cfg.CMRHost, "/"), id.Text(), cfg.ThumbnailHeight, cfg.ThumbnailWidth)
		}
		c.Put("thumbnail", params.String(thumb))
	}
}

func boolField(c *params.Set, key string) (value, present bool) {
	v, ok := c.Get(key)
	if !ok {
		return false, false
	}
	return v.Bool()
}

func hasExtraTag(tags *params.Set, name string) bool {
	t := make(state.Tags, tags.Len())
	for _, k := range tags.Keys() {
		t[k] = state.Tag{}
	}
	return t.HasExtra(name)
}

func toEntry(c *params.Set) (state.CollectionEntry, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return state.CollectionEntry{}, fmt.Errorf("encode collection: %w", err)
	}
	var md state.CollectionMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return state.CollectionEntry{}, fmt.Errorf("decode collection %s: %w", raw, err)
	}
	e := state.CollectionEntry{Metadata: md}
	if gc, ok := c.Get("granule_count"); ok {
		if n, err := strconv.Atoi(gc.Text()); err == nil {
			e.Granules.Hits = n
		}
	}
	return e, nil
}
