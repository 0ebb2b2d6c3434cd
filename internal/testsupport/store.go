package testsupport

import (
	"testing"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
)

// MustOpenStore opens a checkpoint.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewItem creates a work item with the given sub-item filenames for tests.
func NewItem(t testing.TB, store *checkpoint.Store, id, name string, filenames ...string) *checkpoint.WorkItem {
	t.Helper()

	item, err := store.CreateItem(id, name)
	if err != nil {
		t.Fatalf("store.CreateItem: %v", err)
	}
	if len(filenames) > 0 {
		for _, filename := range filenames {
			item.Files = append(item.Files, checkpoint.SubItem{
				URL:      "https://example.test/audio/" + filename,
				Filename: filename,
			})
		}
		item.RecomputeStats()
		if err := store.SaveItem(item); err != nil {
			t.Fatalf("store.SaveItem: %v", err)
		}
	}
	return item
}
