// Package file stores the checkpoint as plain text files holding one integer each.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vietddude/steemstream/internal/core/domain"
)

const (
	ProcessedFile = "most_recent_block_inserted"
	HighWaterFile = "highest_block_inserted"
	LastSeenFile  = "most_recent_block"
)

// CheckpointRepo implements storage.CheckpointRepository on a directory.
// A single process is expected to own the directory.
type CheckpointRepo struct {
	dir string
	mu  sync.Mutex
}

// NewCheckpointRepo creates dir if needed.
func NewCheckpointRepo(dir string) (*CheckpointRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &CheckpointRepo{dir: dir}, nil
}

func (r *CheckpointRepo) Load(ctx context.Context) (domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cp domain.Checkpoint
	var err error
	if cp.LastProcessed, err = r.read(ProcessedFile); err != nil {
		return cp, err
	}
	if cp.HighWater, err = r.read(HighWaterFile); err != nil {
		return cp, err
	}
	if cp.LastSeen, err = r.read(LastSeenFile); err != nil {
		return cp, err
	}
	if info, statErr := os.Stat(filepath.Join(r.dir, ProcessedFile)); statErr == nil {
		cp.UpdatedAt = info.ModTime()
	}
	return cp, nil
}

func (r *CheckpointRepo) SaveFlushed(ctx context.Context, processed, highWater uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.write(ProcessedFile, processed); err != nil {
		return err
	}
	return r.write(HighWaterFile, highWater)
}

func (r *CheckpointRepo) SaveLastSeen(ctx context.Context, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(LastSeenFile, block)
}

func (r *CheckpointRepo) read(name string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number in %s: %w", name, err)
	}
	return v, nil
}

// write replaces the file through a rename so readers never see a partial value.
func (r *CheckpointRepo) write(name string, v uint64) error {
	tmp, err := os.CreateTemp(r.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.FormatUint(v, 10)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(r.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
