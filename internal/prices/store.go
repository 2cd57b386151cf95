package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/storage"
)

const (
	missingDatesQuery    = "get_missing_price_dates"
	missingDatesColumn   = "reward_date"
	insertPriceProcedure = "insert_steem_price_history"
)

// SinkStore reads missing dates and writes price rows through the sink.
type SinkStore struct {
	sink storage.Sink
}

func NewSinkStore(sink storage.Sink) *SinkStore {
	return &SinkStore{sink: sink}
}

// MissingPriceDates returns the reward dates that have no price row.
func (s *SinkStore) MissingPriceDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.sink.Query(ctx, missingDatesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", missingDatesQuery, err)
	}

	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		d, err := parseDate(row[missingDatesColumn])
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// InsertPrice writes one daily row.
func (s *SinkStore) InsertPrice(ctx context.Context, day domain.PriceDay) error {
	if err := s.sink.InsertBatch(ctx, insertPriceProcedure, []domain.PriceDay{day}); err != nil {
		return fmt.Errorf("failed to insert price for %s: %w", day.Date, err)
	}
	return nil
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return truncateDay(d), nil
	case string:
		return parseDateString(d)
	case []byte:
		return parseDateString(string(d))
	}
	return time.Time{}, fmt.Errorf("unexpected %s value %v (%T)", missingDatesColumn, v, v)
}

func parseDateString(s string) (time.Time, error) {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", missingDatesColumn, s, err)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
