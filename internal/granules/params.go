// Package granules prepares granule searches for collections in the current
// state and turns catalog granule responses into project updates.
package granules

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

const (
	PageSize = 20
	SortKey  = "-start_date"
)

// Params is the resolved search context for one collection.
type Params struct {
	AuthToken    string
	CollectionID string
	BoundingBox  string
	Point        string
	Polygon      string
	GridName     string
	GridCoords   string
	PageNum      int
	Temporal     string
	IsCwic       bool
}

// Prepare resolves the search context for collectionID, or for the focused
// collection when collectionID is empty. It returns nil when no id resolves
// or the collection's metadata is not cached.
func Prepare(st state.AppState, collectionID string) *Params {
	id := collectionID
	if id == "" {
		id = st.FocusedCollection
	}
	if id == "" {
		return nil
	}
	entry, ok := st.Collection(id)
	if !ok {
		return nil
	}

	cq := st.Query.Collection
	temporal := cq.Temporal
	if o := cq.OverrideTemporal; o.StartDate != "" && o.EndDate != "" {
		temporal = o
	}

	return &Params{
		AuthToken:    st.AuthToken,
		CollectionID: id,
		BoundingBox:  cq.Spatial.BoundingBox,
		Point:        cq.Spatial.Point,
		Polygon:      cq.Spatial.Polygon,
		GridName:     cq.GridName,
		GridCoords:   EncodeGridCoords(st.Query.Granule.GridCoords),
		PageNum:      st.Query.Granule.PageNum,
		Temporal:     EncodeTemporal(temporal),
		IsCwic:       entry.IsCwic(),
	}
}

type TwoDCoordinateSystem struct {
	Name        string `json:"name"`
	Coordinates string `json:"coordinates,omitempty"`
}

// SearchParams uses the catalog's granule search vocabulary.
type SearchParams struct {
	BoundingBox          string                `json:"boundingBox,omitempty"`
	EchoCollectionID     string                `json:"echoCollectionId"`
	PageNum              int                   `json:"pageNum,omitempty"`
	PageSize             int                   `json:"pageSize"`
	Point                string                `json:"point,omitempty"`
	Polygon              string                `json:"polygon,omitempty"`
	SortKey              string                `json:"sortKey"`
	Temporal             string                `json:"temporal,omitempty"`
	TwoDCoordinateSystem *TwoDCoordinateSystem `json:"twoDCoordinateSystem,omitempty"`
}

func ToSearchParams(p Params) SearchParams {
	sp := SearchParams{
		BoundingBox:      p.BoundingBox,
		EchoCollectionID: p.CollectionID,
		PageNum:          p.PageNum,
		PageSize:         PageSize,
		Point:            p.Point,
		Polygon:          p.Polygon,
		SortKey:          SortKey,
		Temporal:         p.Temporal,
	}
	if p.GridName != "" {
		sp.TwoDCoordinateSystem = &TwoDCoordinateSystem{Name: p.GridName, Coordinates: p.GridCoords}
	}
	return sp
}

// ParamSet renders the search as catalog query parameters. Empty fields are
// left out.
func (sp SearchParams) ParamSet() *params.Set {
	s := params.NewSet()
	putString := func(k, v string) {
		if v != "" {
			s.Put(k, params.String(v))
		}
	}
	putString("bounding_box", sp.BoundingBox)
	putString("echo_collection_id", sp.EchoCollectionID)
	if sp.PageNum > 0 {
		s.Put("page_num", params.Int(sp.PageNum))
	}
	s.Put("page_size", params.Int(sp.PageSize))
	putString("point", sp.Point)
	putString("polygon", sp.Polygon)
	putString("sort_key", sp.SortKey)
	putString("temporal", sp.Temporal)
	if g := sp.TwoDCoordinateSystem; g != nil {
		grid := params.NewSet().Put("name", params.String(g.Name))
		if g.Coordinates != "" {
			grid.Put("coordinates", params.String(g.Coordinates))
		}
		s.Put("two_d_coordinate_system", params.Object(grid))
	}
	return s
}

// EncodeTemporal renders "start,end" and appends the recurring day range
// when the range recurs. Dates that parse are normalized to RFC 3339 UTC.
func EncodeTemporal(t state.Temporal) string {
	if t.StartDate == "" && t.EndDate == "" {
		return ""
	}
	parts := []string{normalizeDate(t.StartDate), normalizeDate(t.EndDate)}
	if t.IsRecurring {
		parts = append(parts, t.RecurringDayStart, t.RecurringDayEnd)
	}
	return strings.Join(parts, ",")
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return s
}

// EncodeGridCoords turns space separated "x:y" cells, where each side is a
// value or a "lo-hi" range, into the catalog's comma separated range form:
// "1:2 3-4:5" becomes "1-1:2-2,3-4:5-5".
func EncodeGridCoords(coords string) string {
	fields := strings.Fields(coords)
	if len(fields) == 0 {
		return ""
	}
	out := make([]string, 0, len(fields))
	for _, cell := range fields {
		x, y, _ := strings.Cut(cell, ":")
		out = append(out, gridRange(x)+":"+gridRange(y))
	}
	return strings.Join(out, ",")
}

func gridRange(s string) string {
	if s == "" {
		return ""
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found || hi == "" {
		hi = lo
	}
	return lo + "-" + hi
}
