// Package state models the read-only application state snapshot the gateway
// works from, and the store that holds cached collection metadata.
package state

import (
	"encoding/json"
	"fmt"
)

type Temporal struct {
	StartDate         string `json:"startDate,omitempty"`
	EndDate           string `json:"endDate,omitempty"`
	IsRecurring       bool   `json:"isRecurring,omitempty"`
	RecurringDayStart string `json:"recurringDayStart,omitempty"`
	RecurringDayEnd   string `json:"recurringDayEnd,omitempty"`
}

// Spatial keeps the catalog's textual forms: "w,s,e,n", "lon,lat" and a
// flat lon,lat ring for polygons.
type Spatial struct {
	BoundingBox string `json:"boundingBox,omitempty"`
	Point       string `json:"point,omitempty"`
	Polygon     string `json:"polygon,omitempty"`
}

type CollectionQuery struct {
	Spatial          Spatial  `json:"spatial"`
	Temporal         Temporal `json:"temporal"`
	OverrideTemporal Temporal `json:"overrideTemporal"`
	GridName         string   `json:"gridName,omitempty"`
}

type GranuleQuery struct {
	GridCoords string `json:"gridCoords,omitempty"`
	PageNum    int    `json:"pageNum,omitempty"`
}

type Query struct {
	Collection CollectionQuery `json:"collection"`
	Granule    GranuleQuery    `json:"granule"`
}

type CollectionMetadata struct {
	ID                 string `json:"id"`
	Title              string `json:"title,omitempty"`
	DataCenter         string `json:"data_center,omitempty"`
	HasGranules        *bool  `json:"has_granules,omitempty"`
	CollectionDataType string `json:"collection_data_type,omitempty"`
	BrowseFlag         bool   `json:"browse_flag,omitempty"`
	Tags               Tags   `json:"tags,omitempty"`
}

type GranuleResults struct {
	Hits int `json:"hits"`
}

type CollectionEntry struct {
	Metadata CollectionMetadata `json:"metadata"`
	Granules GranuleResults     `json:"granules"`
}

// IsCwic reports whether granules for the collection must be searched
// through the federated CWIC path.
func (e CollectionEntry) IsCwic() bool {
	native := e.Metadata.HasGranules != nil && *e.Metadata.HasGranules
	return e.Metadata.Tags.Has(TagCwicGranules) && !native
}

type ProjectCollection struct {
	AddedGranuleIDs []string `json:"addedGranuleIds,omitempty"`
}

type Project struct {
	CollectionIDs []string                     `json:"collectionIds"`
	ByID          map[string]ProjectCollection `json:"byId,omitempty"`
}

func (p Project) Collection(id string) ProjectCollection {
	if p.ByID == nil {
		return ProjectCollection{}
	}
	return p.ByID[id]
}

// Provider is a data provider as listed by the backing API. On the wire
// each provider is wrapped: {"provider":{...}}.
type Provider struct {
	ID               string
	OrganizationName string
	ProviderID       string
}

type providerWire struct {
	Provider struct {
		ID               string `json:"id"`
		OrganizationName string `json:"organization_name"`
		ProviderID       string `json:"provider_id"`
	} `json:"provider"`
}

func (p Provider) MarshalJSON() ([]byte, error) {
	var w providerWire
	w.Provider.ID = p.ID
	w.Provider.OrganizationName = p.OrganizationName
	w.Provider.ProviderID = p.ProviderID
	return json.Marshal(w)
}

func (p *Provider) UnmarshalJSON(b []byte) error {
	var w providerWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode provider: %w", err)
	}
	*p = Provider{
		ID:               w.Provider.ID,
		OrganizationName: w.Provider.OrganizationName,
		ProviderID:       w.Provider.ProviderID,
	}
	return nil
}

// FindProvider matches a collection's data center against provider ids.
func FindProvider(providers []Provider, dataCenter string) (Provider, bool) {
	for _, p := range providers {
		if p.ProviderID == dataCenter {
			return p, true
		}
	}
	return Provider{}, false
}

// AppState is the snapshot a batch operation runs against. Collections is
// filled from the Store at call time and never written back directly.
type AppState struct {
	AuthToken         string                     `json:"-"`
	FocusedCollection string                     `json:"focusedCollection,omitempty"`
	Query             Query                      `json:"query"`
	Project           Project                    `json:"project"`
	Providers         []Provider                 `json:"providers,omitempty"`
	Collections       map[string]CollectionEntry `json:"-"`
}

func (s AppState) Collection(id string) (CollectionEntry, bool) {
	e, ok := s.Collections[id]
	return e, ok
}
