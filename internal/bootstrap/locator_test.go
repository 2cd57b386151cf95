package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// fakeReader produces one block every 3 seconds starting at genesis.
type fakeReader struct {
	genesis time.Time
	head    uint64
	absent  map[uint64]bool
	calls   int
	err     error
}

func (f *fakeReader) GetBlock(ctx context.Context, number uint64) (*domain.BlockHeader, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if number > f.head || f.absent[number] {
		return nil, nil
	}
	ts := f.genesis.Add(time.Duration(number) * 3 * time.Second)
	return &domain.BlockHeader{Number: number, Timestamp: domain.ChainTime{Time: ts}}, nil
}

func (f *fakeReader) GetCurrentBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

// Block 300 is the first block at 2024-01-01 00:00:00.
func newReader() *fakeReader {
	return &fakeReader{
		genesis: time.Date(2023, 12, 31, 23, 45, 0, 0, time.UTC),
		head:    100000,
	}
}

func TestFirstBlockOnDate(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want uint64
	}{
		{"first day", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 300},
		{"time of day ignored", time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC), 300},
		{"second day", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 300 + 28800},
		{"genesis day", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewLocator(newReader(), 0)
			if err != nil {
				t.Fatalf("Failed to create locator: %v", err)
			}
			got, err := loc.FirstBlockOnDate(context.Background(), tt.date)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected block %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFirstBlockOnDate_NotFound(t *testing.T) {
	loc, _ := NewLocator(newReader(), 0)

	_, err := loc.FirstBlockOnDate(context.Background(), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFirstBlockOnDate_AbsentBlocks(t *testing.T) {
	reader := newReader()
	reader.absent = map[uint64]bool{50000: true, 25000: true}
	loc, _ := NewLocator(reader, 0)

	got, err := loc.FirstBlockOnDate(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != 300 {
		t.Errorf("Expected block 300, got %d", got)
	}
}

func TestFirstBlockOnDate_UsesCache(t *testing.T) {
	reader := newReader()
	loc, _ := NewLocator(reader, 0)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := loc.FirstBlockOnDate(context.Background(), date); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first := reader.calls
	if first == 0 {
		t.Fatal("Expected block lookups on first search")
	}

	if _, err := loc.FirstBlockOnDate(context.Background(), date); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reader.calls != first {
		t.Errorf("Expected cached search to make no lookups, got %d new", reader.calls-first)
	}
}

func TestFirstBlockOnDate_ReaderError(t *testing.T) {
	reader := newReader()
	reader.err = errors.New("connection refused")
	loc, _ := NewLocator(reader, 0)

	if _, err := loc.FirstBlockOnDate(context.Background(), time.Now()); err == nil {
		t.Error("Expected error")
	}
}
