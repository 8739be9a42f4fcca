package state

import (
	"encoding/json"
	"strings"
)

const (
	TagCapabilities = "edsc.extra.serverless.collection_capabilities"
	TagEchoOrders   = "edsc.extra.serverless.subset_service.echo_orders"
	TagESI          = "edsc.extra.serverless.subset_service.esi"
	TagOPeNDAP      = "edsc.extra.serverless.subset_service.opendap"
	TagCwicGranules = "org.ceos.wgiss.cwic.granules.prod"
	TagGIBS         = "edsc.extra.gibs"

	tagPrefix = "edsc.extra."
)

// DefaultIncludeTags is the include_tags value applied to collection searches
// that name none.
const DefaultIncludeTags = "edsc.*,org.ceos.wgiss.cwic.granules.prod"

type Tag struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type Tags map[string]Tag

func (t Tags) Has(ns string) bool {
	_, ok := t[ns]
	return ok
}

// HasExtra looks up a tag by its short name under the edsc.extra namespace.
func (t Tags) HasExtra(name string) bool {
	if t.Has(tagPrefix + name) {
		return true
	}
	for k := range t {
		if strings.HasPrefix(k, tagPrefix+name+".") {
			return true
		}
	}
	return false
}

// OnlineAccess reads granule_online_access_flag from the capabilities tag.
func (t Tags) OnlineAccess() bool {
	tag, ok := t[TagCapabilities]
	if !ok || len(tag.Data) == 0 {
		return false
	}
	var d struct {
		GranuleOnlineAccessFlag bool `json:"granule_online_access_flag"`
	}
	if err := json.Unmarshal(tag.Data, &d); err != nil {
		return false
	}
	return d.GranuleOnlineAccessFlag
}

// HasOrderService reports whether any bulk-order or subsetting service tag
// is present.
func (t Tags) HasOrderService() bool {
	return t.Has(TagEchoOrders) || t.Has(TagESI) || t.Has(TagOPeNDAP)
}

type OptionDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (t Tags) OptionDefinitions() []OptionDefinition {
	tag, ok := t[TagEchoOrders]
	if !ok || len(tag.Data) == 0 {
		return nil
	}
	var d struct {
		OptionDefinitions []OptionDefinition `json:"option_definitions"`
	}
	if err := json.Unmarshal(tag.Data, &d); err != nil {
		return nil
	}
	return d.OptionDefinitions
}
