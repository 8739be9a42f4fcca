// Package resources holds the per-resource parameter allow-lists for the catalog.
package resources

type Resource struct {
	Name           string
	Path           string
	PermittedKeys  []string
	NonIndexedKeys []string
}

var collectionKeys = []string{
	"bounding_box",
	"collection_data_type",
	"concept_id",
	"data_center_h",
	"format",
	"facets_size",
	"has_granules",
	"has_granules_or_cwic",
	"include_facets",
	"include_granule_counts",
	"include_has_granules",
	"include_tags",
	"instrument_h",
	"keyword",
	"line",
	"options",
	"page_num",
	"page_size",
	"platform_h",
	"point",
	"polygon",
	"processing_level_id_h",
	"project_h",
	"science_keywords_h",
	"sort_key",
	"tag_key",
	"temporal",
	"two_d_coordinate_system",
}

var collectionNonIndexed = []string{
	"collection_data_type",
	"concept_id",
	"data_center_h",
	"instrument_h",
	"platform_h",
	"processing_level_id_h",
	"project_h",
	"sort_key",
	"tag_key",
}

var (
	Collections = Resource{
		Name:           "collections",
		Path:           "/search/collections.json",
		PermittedKeys:  collectionKeys,
		NonIndexedKeys: collectionNonIndexed,
	}

	// alternate metadata representation only accepts concept ids
	CollectionsUMM = Resource{
		Name:           "collections_umm",
		Path:           "/search/collections.umm_json",
		PermittedKeys:  []string{"concept_id"},
		NonIndexedKeys: collectionNonIndexed,
	}

	Granules = Resource{
		Name: "granules",
		Path: "/search/granules.json",
		PermittedKeys: []string{
			"bounding_box",
			"browse_only",
			"cloud_cover",
			"concept_id",
			"day_night_flag",
			"echo_collection_id",
			"exclude",
			"line",
			"online_only",
			"options",
			"page_num",
			"page_size",
			"point",
			"polygon",
			"readable_granule_name",
			"sort_key",
			"temporal",
			"two_d_coordinate_system",
		},
		NonIndexedKeys: []string{
			"concept_id",
			"exclude",
			"readable_granule_name",
			"sort_key",
		},
	}

	// served by the backing API, which federates to CWIC providers
	CwicGranules = Resource{
		Name: "cwic_granules",
		Path: "/cwic/granules",
		PermittedKeys: []string{
			"bounding_box",
			"echo_collection_id",
			"page_num",
			"page_size",
			"point",
			"polygon",
			"temporal",
		},
	}
)

// ForCollections picks the collection resource for a response extension.
func ForCollections(ext string) Resource {
	if ext == "umm_json" {
		return CollectionsUMM
	}
	return Collections
}
