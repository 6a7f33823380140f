package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/muxship/internal/ports"
)

func TestSessionFileRepository_LoadMissing(t *testing.T) {
	repo := NewSessionFileRepository(t.TempDir())

	rec, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec != (ports.SessionRecord{}) {
		t.Errorf("Load() = %+v, want zero record", rec)
	}
}

func TestSessionFileRepository_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	repo := NewSessionFileRepository(dir)

	want := ports.SessionRecord{
		SessionID:        0xdeadbeef,
		Connections:      4,
		LastCheckPointAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(repo.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	info, err := os.Stat(repo.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.LastCheckPointAt.Equal(want.LastCheckPointAt) || got.SessionID != want.SessionID || got.Connections != want.Connections {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSessionFileRepository_Corrupt(t *testing.T) {
	dir := t.TempDir()
	repo := NewSessionFileRepository(dir)
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load() of corrupt file succeeded")
	}
}
