package catalog_test

import (
	"context"
	"testing"

	"voxcrawl/internal/catalog"
	"voxcrawl/internal/testsupport"
)

func openCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestReplaceAndList(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	entries := []catalog.Champion{
		{ID: "kaisa", Name: "Kai'Sa", AudioURL: "https://example.test/Kai%27Sa/Audio"},
		{ID: "aatrox", Name: "Aatrox", AudioURL: "https://example.test/Aatrox/Audio"},
	}
	if err := store.Replace(ctx, entries); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(listed))
	}
	if listed[0].ID != "aatrox" || listed[1].ID != "kaisa" {
		t.Fatalf("expected id-ordered list, got %v", listed)
	}
	if listed[1].Name != "Kai'Sa" {
		t.Fatalf("unexpected name: %q", listed[1].Name)
	}
	if listed[0].DiscoveredAt.IsZero() {
		t.Fatal("expected discovery timestamp")
	}

	// Replace swaps the whole list.
	if err := store.Replace(ctx, entries[:1]); err != nil {
		t.Fatalf("Replace second call: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", count)
	}
}

func TestLookup(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, catalog.Champion{ID: "jhin", Name: "Jhin", AudioURL: "u1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	champion, err := store.Lookup(ctx, "jhin")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if champion == nil || champion.Name != "Jhin" {
		t.Fatalf("unexpected lookup result: %+v", champion)
	}

	absent, err := store.Lookup(ctx, "nobody")
	if err != nil {
		t.Fatalf("Lookup absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("expected nil for absent id, got %+v", absent)
	}

	// Upsert updates in place.
	if err := store.Upsert(ctx, catalog.Champion{ID: "jhin", Name: "Jhin", AudioURL: "u2"}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	updated, err := store.Lookup(ctx, "jhin")
	if err != nil {
		t.Fatalf("Lookup after update: %v", err)
	}
	if updated.AudioURL != "u2" {
		t.Fatalf("expected updated audio url, got %q", updated.AudioURL)
	}
}

func TestClear(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, catalog.Champion{ID: "lux", Name: "Lux", AudioURL: "u"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty catalog, got %d", count)
	}
}
