package granules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
)

const (
	KindUpdateProjectGranules = "update_project_granules"
	HitsHeader                = "CMR-Hits"
)

// TotalSize is a human scaled size estimate. Granule sizes are reported in
// megabytes.
type TotalSize struct {
	Size string `json:"size"`
	Unit string `json:"unit"`
}

// ProjectGranules is the granule page for one project collection. It is
// also the effect handed to the update sink.
type ProjectGranules struct {
	CollectionID string            `json:"collectionId"`
	IsCwic       bool              `json:"isCwic"`
	Hits         int               `json:"hits"`
	Results      []json.RawMessage `json:"results"`
	TotalSize    TotalSize         `json:"totalSize"`
	DownloadURLs []Link            `json:"downloadUrls,omitempty"`
	Links        []GranuleLinks    `json:"granuleLinks,omitempty"`
}

// GranuleLinks holds the links derived for one granule of the page, in
// result order.
type GranuleLinks struct {
	ID           string                 `json:"id"`
	DataLinks    []Link                 `json:"dataLinks,omitempty"`
	MetadataURLs map[string]MetadataURL `json:"metadataUrls,omitempty"`
}

func (ProjectGranules) Kind() string { return KindUpdateProjectGranules }
func (p ProjectGranules) Key() string { return p.CollectionID }

type Link struct {
	Href      string `json:"href"`
	Rel       string `json:"rel"`
	Inherited bool   `json:"inherited,omitempty"`
}

// Granule is the subset of a granule entry the gateway reads.
type Granule struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	GranuleSize Size   `json:"granule_size,omitempty"`
	Links       []Link `json:"links,omitempty"`
}

// Size accepts both a JSON number and a numeric string.
type Size float64

func (s *Size) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("granule size %s: %w", b, err)
	}
	*s = Size(f)
	return nil
}

type feed struct {
	Feed struct {
		Entry []json.RawMessage `json:"entry"`
		Hits  json.Number       `json:"hits"`
	} `json:"feed"`
}

// PopulateResults decodes a granule search response. Catalog searches carry
// the hit count in the CMR-Hits header; CWIC responses carry it in the feed.
func PopulateResults(collectionID string, isCwic bool, header http.Header, body []byte) (ProjectGranules, error) {
	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		return ProjectGranules{}, fmt.Errorf("decode granule feed: %w", err)
	}
	out := ProjectGranules{
		CollectionID: collectionID,
		IsCwic:       isCwic,
		Results:      f.Feed.Entry,
	}
	if out.Results == nil {
		out.Results = []json.RawMessage{}
	}

	var hits string
	if isCwic {
		hits = f.Feed.Hits.String()
	} else {
		hits = header.Get(HitsHeader)
	}
	if hits != "" {
		n, err := strconv.Atoi(hits)
		if err != nil {
			return ProjectGranules{}, fmt.Errorf("granule hits %q: %w", hits, err)
		}
		out.Hits = n
	}

	var sum float64
	gs := make([]Granule, 0, len(out.Results))
	for _, raw := range out.Results {
		var g Granule
		if err := json.Unmarshal(raw, &g); err != nil {
			return ProjectGranules{}, fmt.Errorf("decode granule: %w", err)
		}
		sum += float64(g.GranuleSize)
		gs = append(gs, g)
	}
	out.DownloadURLs = DownloadURLs(gs)
	for _, g := range gs {
		out.Links = append(out.Links, GranuleLinks{ID: g.ID, DataLinks: DataLinks(g.Links)})
	}
	var estimate float64
	if len(out.Results) > 0 {
		estimate = sum / float64(len(out.Results)) * float64(out.Hits)
	}
	out.TotalSize = ConvertSize(estimate)
	return out, nil
}

var sizeUnits = []string{"MB", "GB", "TB", "PB", "EB"}

// ConvertSize scales megabytes to the largest unit that keeps the value
// above 1024, formatted with one decimal.
func ConvertSize(mb float64) TotalSize {
	i := 0
	for mb > 1024 && i < len(sizeUnits)-1 {
		mb /= 1024
		i++
	}
	return TotalSize{Size: strconv.FormatFloat(mb, 'f', 1, 64), Unit: sizeUnits[i]}
}

func isDataLink(l Link, scheme string) bool {
	return strings.Contains(l.Href, scheme) && strings.Contains(l.Rel, "/data#") && !l.Inherited
}

// DataLinks keeps the granule's own data links, preferring http over ftp
// when both serve the same file name.
func DataLinks(links []Link) []Link {
	var out []Link
	names := map[string]struct{}{}
	for _, l := range links {
		if isDataLink(l, "http") {
			out = append(out, l)
			names[strings.TrimSuffix(path.Base(l.Href), ".html")] = struct{}{}
		}
	}
	for _, l := range links {
		if !isDataLink(l, "ftp") {
			continue
		}
		if _, dup := names[path.Base(l.Href)]; dup {
			continue
		}
		out = append(out, l)
	}
	return out
}

// DownloadURLs picks the first non-inherited data link of each granule.
func DownloadURLs(granules []Granule) []Link {
	var out []Link
	for _, g := range granules {
		for _, l := range g.Links {
			if strings.Contains(l.Rel, "/data#") && !l.Inherited {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

type MetadataURL struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

var metadataFormats = []struct{ ext, title string }{
	{"atom", "ATOM"},
	{"echo10", "ECHO 10"},
	{"iso19115", "ISO 19115"},
	{"native", "Native"},
	{"umm_json", "UMM-G"},
}

// AddMetadataURLs fills the metadata URLs of every catalog granule on the
// page. CWIC granule ids are not catalog concept ids and get none.
func (p *ProjectGranules) AddMetadataURLs(cmrHost string) {
	if p.IsCwic {
		return
	}
	for i := range p.Links {
		if p.Links[i].ID != "" {
			p.Links[i].MetadataURLs = MetadataURLs(cmrHost, p.Links[i].ID)
		}
	}
}

// MetadataURLs lists the concept URLs of a granule per metadata format.
// The native format has no extension.
func MetadataURLs(cmrHost, granuleID string) map[string]MetadataURL {
	base := strings.TrimRight(cmrHost, "/") + "/search/concepts/" + granuleID
	out := make(map[string]MetadataURL, len(metadataFormats))
	for _, f := range metadataFormats {
		href := base
		if f.ext != "native" {
			href += "." + f.ext
		}
		out[f.ext] = MetadataURL{Title: f.title, Href: href}
	}
	return out
}
