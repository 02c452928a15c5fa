package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type record struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func newTestStorage(t *testing.T) (*fileStorage, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), DataDirName)
	return NewFileStorage(root, nil).(*fileStorage), root
}

func TestSave_WritesIndentedJSON(t *testing.T) {
	s, root := newTestStorage(t)

	if err := s.Save("tasks", "CC-00001", record{ID: "CC-00001", Name: "first"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "tasks", "CC-00001.json"))
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"name\": \"first\"") {
		t.Errorf("expected 2-space indented JSON, got:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(root, "tasks", "CC-00001.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}
}

func TestFindByID_AfterSave(t *testing.T) {
	s, _ := newTestStorage(t)
	in := record{ID: "a", Name: "alpha", Count: 3, Tags: []string{"x", "y"}}
	if err := s.Save("things", "a", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out record
	found, err := s.FindByID("things", "a", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected entity to be found")
	}
	if out.Name != "alpha" || out.Count != 3 || len(out.Tags) != 2 {
		t.Errorf("unexpected entity: %+v", out)
	}
}

func TestFindByID_Missing(t *testing.T) {
	s, _ := newTestStorage(t)
	var out record
	found, err := s.FindByID("things", "nope", &out)
	if err != nil {
		t.Fatalf("missing entity should not be an error, got %v", err)
	}
	if found {
		t.Fatal("expected found = false")
	}
}

func TestFindByID_ReadsFromDiskOnCacheMiss(t *testing.T) {
	_, root := newTestStorage(t)
	dir := filepath.Join(root, "things")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"id":"b","name":"beta"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStorage(root, nil)
	var out record
	found, err := s.FindByID("things", "b", &out)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if out.Name != "beta" {
		t.Errorf("expected name beta, got %q", out.Name)
	}
}

func TestFindByID_CachedValueIsNotAliased(t *testing.T) {
	s, _ := newTestStorage(t)
	if err := s.Save("things", "a", record{ID: "a", Tags: []string{"x"}}); err != nil {
		t.Fatal(err)
	}

	var first record
	if _, err := s.FindByID("things", "a", &first); err != nil {
		t.Fatal(err)
	}
	first.Tags[0] = "mutated"

	var second record
	if _, err := s.FindByID("things", "a", &second); err != nil {
		t.Fatal(err)
	}
	if second.Tags[0] != "x" {
		t.Errorf("mutating a returned value changed the cache: %v", second.Tags)
	}
}

func TestFindAll_MissingDirectory(t *testing.T) {
	s, _ := newTestStorage(t)
	all, err := s.FindAll("empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty list, got %d", len(all))
	}
}

func TestFindAll_ServedFromCacheUntilInvalidated(t *testing.T) {
	s, root := newTestStorage(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Save("things", id, record{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.FindAll("things")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(all))
	}
	var first record
	if err := json.Unmarshal(all[0], &first); err != nil {
		t.Fatal(err)
	}
	if first.ID != "a" {
		t.Errorf("expected results ordered by id, first was %q", first.ID)
	}

	// A file written behind the engine's back is not visible until invalidation.
	if err := os.WriteFile(filepath.Join(root, "things", "d.json"), []byte(`{"id":"d"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	all, _ = s.FindAll("things")
	if len(all) != 3 {
		t.Fatalf("expected cached listing of 3, got %d", len(all))
	}

	s.Invalidate("things")
	all, _ = s.FindAll("things")
	if len(all) != 4 {
		t.Fatalf("expected 4 entities after invalidation, got %d", len(all))
	}
}

func TestFindAll_SeesWritesThroughEngine(t *testing.T) {
	s, _ := newTestStorage(t)
	if _, err := s.FindAll("things"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("things", "a", record{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	all, _ := s.FindAll("things")
	if len(all) != 1 {
		t.Fatalf("expected save to be visible in cached listing, got %d", len(all))
	}
	if _, err := s.Delete("things", "a"); err != nil {
		t.Fatal(err)
	}
	all, _ = s.FindAll("things")
	if len(all) != 0 {
		t.Fatalf("expected delete to be visible in cached listing, got %d", len(all))
	}
}

func TestFindAll_SkipsCorruptFiles(t *testing.T) {
	s, root := newTestStorage(t)
	if err := s.Save("things", "good", record{ID: "good"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "things", "bad.json"), []byte(`{"id": "bad",`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "things", "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.Invalidate("things")

	all, err := s.FindAll("things")
	if err != nil {
		t.Fatalf("corrupt file should not abort listing: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 readable entity, got %d", len(all))
	}
	skipped := s.LastSkipped("things")
	if len(skipped) != 1 || skipped[0] != "bad.json" {
		t.Errorf("expected bad.json to be reported as skipped, got %v", skipped)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := newTestStorage(t)
	if err := s.Save("things", "a", record{ID: "a"}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Delete("things", "a")
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = s.Delete("things", "a")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}

	var out record
	found, _ := s.FindByID("things", "a", &out)
	if found {
		t.Error("deleted entity should not be found")
	}
}

func TestInvalidIDs(t *testing.T) {
	s, _ := newTestStorage(t)
	for _, id := range []string{"", "  ", "../escape", "a/b", `a\b`, ".."} {
		err := s.Save("things", id, record{})
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q): expected ErrInvalidID, got %v", id, err)
		}
		var out record
		if _, err := s.FindByID("things", id, &out); !errors.Is(err, ErrInvalidID) {
			t.Errorf("FindByID(%q): expected ErrInvalidID, got %v", id, err)
		}
	}
}

func TestSave_DirectoryCreationFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file, not dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStorage(blocker, nil)
	if err := s.Save("things", "a", record{ID: "a"}); err == nil {
		t.Fatal("expected error when data root is a regular file")
	}
}

func TestCollection_TypedAccess(t *testing.T) {
	s, root := newTestStorage(t)
	c := NewCollection[record](s, "things")

	if err := c.Put("a", record{ID: "a", Name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get("a")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Name != "alpha" {
		t.Errorf("unexpected name %q", got.Name)
	}

	missing, err := c.Get("zzz")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing entity, got %v %v", missing, err)
	}

	// Valid JSON with the wrong shape is skipped by the typed view.
	if err := os.WriteFile(filepath.Join(root, "things", "odd.json"), []byte(`["not", "a", "record"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	items, skipped, err := c.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || skipped != 1 {
		t.Errorf("expected 1 item and 1 skipped, got %d and %d", len(items), skipped)
	}
}
