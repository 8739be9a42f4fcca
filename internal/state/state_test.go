package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/catalog-gateway/internal/cache/redisstore"
)

func boolPtr(b bool) *bool { return &b }

func entry(id string, hits int, tags Tags) CollectionEntry {
	return CollectionEntry{
		Metadata: CollectionMetadata{ID: id, DataCenter: "PROV", Tags: tags},
		Granules: GranuleResults{Hits: hits},
	}
}

func TestTags_OnlineAccessAndOrders(t *testing.T) {
	tags := Tags{
		TagCapabilities: {Data: json.RawMessage(`{"granule_online_access_flag":true}`)},
		TagEchoOrders:   {Data: json.RawMessage(`{"option_definitions":[{"id":"od1","name":"Delivery Option"}]}`)},
	}
	if !tags.OnlineAccess() {
		t.Fatal("expected online access")
	}
	if !tags.HasOrderService() {
		t.Fatal("expected order service")
	}
	ods := tags.OptionDefinitions()
	if len(ods) != 1 || ods[0].ID != "od1" || ods[0].Name != "Delivery Option" {
		t.Fatalf("option definitions=%+v", ods)
	}
	if (Tags{}).OnlineAccess() {
		t.Fatal("empty tags must not claim online access")
	}
	if !(Tags{TagGIBS: {}}).HasExtra("gibs") {
		t.Fatal("expected gibs tag to be found")
	}
}

func TestCollectionEntry_IsCwic(t *testing.T) {
	cwic := Tags{TagCwicGranules: {}}
	cases := []struct {
		name string
		e    CollectionEntry
		want bool
	}{
		{"tag and no granules", CollectionEntry{Metadata: CollectionMetadata{Tags: cwic, HasGranules: boolPtr(false)}}, true},
		{"tag and has_granules unset", CollectionEntry{Metadata: CollectionMetadata{Tags: cwic}}, true},
		{"tag but native granules", CollectionEntry{Metadata: CollectionMetadata{Tags: cwic, HasGranules: boolPtr(true)}}, false},
		{"no tag", CollectionEntry{Metadata: CollectionMetadata{HasGranules: boolPtr(false)}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.e.IsCwic(); got != tc.want {
				t.Fatalf("IsCwic=%v want %v", got, tc.want)
			}
		})
	}
}

func TestProvider_WireShape(t *testing.T) {
	in := `[{"provider":{"id":"abcd-1234","organization_name":"EDSC-TEST","provider_id":"EDSC-TEST"}}]`
	var ps []Provider
	if err := json.Unmarshal([]byte(in), &ps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ps) != 1 || ps[0].ProviderID != "EDSC-TEST" || ps[0].ID != "abcd-1234" {
		t.Fatalf("providers=%+v", ps)
	}
	out, _ := json.Marshal(ps)
	if string(out) != in {
		t.Fatalf("marshal=%s", out)
	}
	if _, ok := FindProvider(ps, "EDSC-TEST"); !ok {
		t.Fatal("expected provider match")
	}
	if _, ok := FindProvider(ps, "OTHER"); ok {
		t.Fatal("unexpected provider match")
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(8, 0)
	_ = m.PutCollections(ctx, []CollectionEntry{entry("C1", 0, nil), entry("C2", 0, nil)})
	_ = m.PutGranuleHits(ctx, "C1", 5000)

	got, _ := m.Collections(ctx, []string{"C1", "C2", "C3"})
	if len(got) != 2 || got["C1"].Granules.Hits != 5000 {
		t.Fatalf("got=%+v", got)
	}

	// refreshing metadata keeps the hit count
	_ = m.PutCollections(ctx, []CollectionEntry{entry("C1", 0, nil)})
	got, _ = m.Collections(ctx, []string{"C1"})
	if got["C1"].Granules.Hits != 5000 {
		t.Fatalf("hits lost on refresh: %+v", got["C1"])
	}

	_ = m.DeleteCollections(ctx, "C1")
	got, _ = m.Collections(ctx, []string{"C1"})
	if len(got) != 0 {
		t.Fatalf("expected C1 deleted, got %+v", got)
	}
}

func newRedis(t *testing.T) *redisstore.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(newRedis(t), time.Hour)

	tags := Tags{TagCapabilities: {Data: json.RawMessage(`{"granule_online_access_flag":true}`)}}
	if err := s.PutCollections(ctx, []CollectionEntry{entry("C1", 10, tags)}); err != nil {
		t.Fatalf("PutCollections: %v", err)
	}
	if err := s.PutGranuleHits(ctx, "C1", 4321); err != nil {
		t.Fatalf("PutGranuleHits: %v", err)
	}

	got, err := s.Collections(ctx, []string{"C1", "missing"})
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	e, ok := got["C1"]
	if !ok || len(got) != 1 {
		t.Fatalf("got=%+v", got)
	}
	if e.Granules.Hits != 4321 || !e.Metadata.Tags.OnlineAccess() || e.Metadata.DataCenter != "PROV" {
		t.Fatalf("entry=%+v", e)
	}

	if err := s.DeleteCollections(ctx, "C1"); err != nil {
		t.Fatalf("DeleteCollections: %v", err)
	}
	got, _ = s.Collections(ctx, []string{"C1"})
	if len(got) != 0 {
		t.Fatalf("expected deletion, got %+v", got)
	}
}

type failingStore struct{ Store }

func (failingStore) Collections(context.Context, []string) (map[string]CollectionEntry, error) {
	return nil, errors.New("redis down")
}

func TestTiered_FillsFrontAndDegrades(t *testing.T) {
	ctx := context.Background()
	back := NewRedisStore(newRedis(t), time.Hour)
	_ = back.PutCollections(ctx, []CollectionEntry{entry("C1", 3, nil)})

	front := NewMemoryStore(8, time.Minute)
	tier := NewTiered(front, back, nil)

	got, err := tier.Collections(ctx, []string{"C1"})
	if err != nil || got["C1"].Granules.Hits != 3 {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	if front.Len() != 1 {
		t.Fatalf("front tier not filled: len=%d", front.Len())
	}

	degraded := NewTiered(front, failingStore{}, nil)
	got, err = degraded.Collections(ctx, []string{"C1", "C2"})
	if err != nil {
		t.Fatalf("degraded read should not fail: %v", err)
	}
	if _, ok := got["C1"]; !ok || len(got) != 1 {
		t.Fatalf("degraded got=%+v", got)
	}
}

func TestSnapshot_LoadsCollections(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(8, 0)
	_ = m.PutCollections(ctx, []CollectionEntry{entry("C1", 1, nil)})

	st, err := Snapshot(ctx, m, AppState{AuthToken: "tok"}, []string{"C1"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := st.Collection("C1"); !ok || st.AuthToken != "tok" {
		t.Fatalf("state=%+v", st)
	}
}
