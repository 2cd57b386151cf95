package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointRepo_MissingFilesLoadAsZero(t *testing.T) {
	repo, err := NewCheckpointRepo(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewCheckpointRepo failed: %v", err)
	}

	cp, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp.LastProcessed != 0 || cp.HighWater != 0 || cp.LastSeen != 0 {
		t.Errorf("Expected zero checkpoint, got %+v", cp)
	}
}

func TestCheckpointRepo_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewCheckpointRepo(dir)
	if err != nil {
		t.Fatalf("NewCheckpointRepo failed: %v", err)
	}
	ctx := context.Background()

	if err := repo.SaveFlushed(ctx, 84763551, 84763600); err != nil {
		t.Fatalf("SaveFlushed failed: %v", err)
	}
	if err := repo.SaveLastSeen(ctx, 84763610); err != nil {
		t.Fatalf("SaveLastSeen failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ProcessedFile))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "84763551" {
		t.Errorf("Expected file content 84763551, got %q", data)
	}

	cp, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp.LastProcessed != 84763551 {
		t.Errorf("Expected LastProcessed 84763551, got %d", cp.LastProcessed)
	}
	if cp.HighWater != 84763600 {
		t.Errorf("Expected HighWater 84763600, got %d", cp.HighWater)
	}
	if cp.LastSeen != 84763610 {
		t.Errorf("Expected LastSeen 84763610, got %d", cp.LastSeen)
	}
}

func TestCheckpointRepo_InvalidContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, HighWaterFile), []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	repo, err := NewCheckpointRepo(dir)
	if err != nil {
		t.Fatalf("NewCheckpointRepo failed: %v", err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Expected error for invalid content")
	}
}

func TestCheckpointRepo_TrailingNewline(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ProcessedFile), []byte("123\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	repo, _ := NewCheckpointRepo(dir)

	cp, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp.LastProcessed != 123 {
		t.Errorf("Expected 123, got %d", cp.LastProcessed)
	}
}
