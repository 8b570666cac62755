package shares_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soulsift/soulsift/internal/shares"
)

func setupTestStore(t *testing.T) *shares.Store {
	t.Helper()
	db, err := shares.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return shares.NewStore(db)
}

func TestStore_AddAndFind(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Add("/music/song.mp3", "song.mp3", 1024, "abc123"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	file, err := s.FindByPath("/music/song.mp3")
	if err != nil {
		t.Fatalf("FindByPath failed: %v", err)
	}
	if file.Name != "song.mp3" {
		t.Errorf("expected name 'song.mp3', got %q", file.Name)
	}
	if file.Size != 1024 {
		t.Errorf("expected size 1024, got %d", file.Size)
	}
	if file.Checksum != "abc123" {
		t.Errorf("expected checksum 'abc123', got %q", file.Checksum)
	}
}

func TestStore_AddUpsertsByPath(t *testing.T) {
	s := setupTestStore(t)

	_ = s.Add("/music/song.mp3", "song.mp3", 1024, "old")
	if err := s.Add("/music/song.mp3", "song.mp3", 2048, "new"); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 file after upsert, got %d", len(all))
	}
	if all[0].Size != 2048 || all[0].Checksum != "new" {
		t.Errorf("expected updated row, got size=%d checksum=%q", all[0].Size, all[0].Checksum)
	}
}

func TestStore_FindByPath_NotShared(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindByPath("/nope")
	if !errors.Is(err, shares.ErrNotShared) {
		t.Errorf("expected ErrNotShared, got %v", err)
	}
}

func TestStore_Search(t *testing.T) {
	s := setupTestStore(t)

	_ = s.Add("/music/red house.mp3", "red house.mp3", 1, "h1")
	_ = s.Add("/music/little wing.mp3", "little wing.mp3", 2, "h2")
	_ = s.Add("/books/red mars.epub", "red mars.epub", 3, "h3")

	files, err := s.Search("red")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 matches, got %d", len(files))
	}
}

func TestStore_ScanRoots(t *testing.T) {
	s := setupTestStore(t)

	root := t.TempDir()
	sub := filepath.Join(root, "album")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.mp3"), []byte("aaa"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.mp3"), []byte("bbbb"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := s.ScanRoots([]string{root})
	if err != nil {
		t.Fatalf("ScanRoots failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 files indexed, got %d", n)
	}

	file, err := s.FindByPath(filepath.Join(sub, "b.mp3"))
	if err != nil {
		t.Fatalf("FindByPath failed: %v", err)
	}
	if file.Size != 4 {
		t.Errorf("expected size 4, got %d", file.Size)
	}
	if len(file.Checksum) != 40 {
		t.Errorf("expected sha1 hex checksum, got %q", file.Checksum)
	}
}

func TestStore_DownloadHistory(t *testing.T) {
	s := setupTestStore(t)

	if err := s.RecordDownload("alice", "music\\a.mp3", 10); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}
	if err := s.RecordDownload("bob", "music\\b.mp3", 20); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	records, err := s.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Peer != "bob" {
		t.Errorf("expected most recent first, got peer %q", records[0].Peer)
	}
}
