// Package bootstrap finds the block a fresh ingestion run starts from.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vietddude/steemstream/internal/core/domain"
)

const defaultCacheSize = 4096

// ErrNotFound is returned when no block was produced on the requested date.
var ErrNotFound = errors.New("no block found on date")

// BlockReader reads block headers and the current head.
type BlockReader interface {
	GetBlock(ctx context.Context, number uint64) (*domain.BlockHeader, error)
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)
}

// Locator binary-searches block timestamps. Timestamps of present blocks are
// cached, so repeated searches over nearby dates are cheap.
type Locator struct {
	reader BlockReader
	cache  *lru.Cache
}

func NewLocator(reader BlockReader, cacheSize int) (*Locator, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}
	return &Locator{reader: reader, cache: cache}, nil
}

// FirstBlockOnDate returns the first block whose timestamp falls on date (UTC).
func (l *Locator) FirstBlockOnDate(ctx context.Context, date time.Time) (uint64, error) {
	y, m, d := date.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	head, err := l.reader.GetCurrentBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get head block: %w", err)
	}

	var (
		low, high = uint64(1), head
		result    uint64
		probes    int
	)
	for low <= high {
		mid := low + (high-low)/2
		probes++

		ts, ok, err := l.timestamp(ctx, mid)
		if err != nil {
			return 0, err
		}
		switch {
		case !ok, !ts.Before(end):
			high = mid - 1
		case ts.Before(start):
			low = mid + 1
		default:
			result = mid
			high = mid - 1
		}
	}

	if result == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, start.Format(time.DateOnly))
	}
	slog.Debug("Located first block on date", "date", start.Format(time.DateOnly), "block", result, "probes", probes)
	return result, nil
}

// BlockTime returns the timestamp of block number, or false if it does not exist.
func (l *Locator) BlockTime(ctx context.Context, number uint64) (time.Time, bool, error) {
	return l.timestamp(ctx, number)
}

func (l *Locator) timestamp(ctx context.Context, number uint64) (time.Time, bool, error) {
	if v, ok := l.cache.Get(number); ok {
		return v.(time.Time), true, nil
	}

	block, err := l.reader.GetBlock(ctx, number)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get block %d: %w", number, err)
	}
	if block == nil {
		return time.Time{}, false, nil
	}

	ts := block.Timestamp.Time
	l.cache.Add(number, ts)
	return ts, true, nil
}
