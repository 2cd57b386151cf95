package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/vietddude/steemstream/internal/infra/storage"
)

// Sink implements storage.Sink on stored procedures and set-returning functions.
type Sink struct {
	db *DB
}

// NewSink creates a sink that owns db and closes it on Close.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

// InsertBatch passes records as one JSONB argument to procedure.
func (s *Sink) InsertBatch(ctx context.Context, procedure string, records any) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode records for %s: %w", procedure, err)
	}

	query := fmt.Sprintf("CALL %s($1::jsonb)", pq.QuoteIdentifier(procedure))
	if _, err := s.db.ExecContext(ctx, query, string(payload)); err != nil {
		return fmt.Errorf("failed to call %s: %w", procedure, err)
	}
	return nil
}

// Call runs a procedure that takes no arguments.
func (s *Sink) Call(ctx context.Context, procedure string) error {
	query := fmt.Sprintf("CALL %s()", pq.QuoteIdentifier(procedure))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to call %s: %w", procedure, err)
	}
	return nil
}

// Query selects every row of function(params...) across all result sets.
// Byte slices are returned as strings.
func (s *Sink) Query(ctx context.Context, function string, params ...any) ([]storage.Row, error) {
	placeholders := make([]string, len(params))
	for i := range params {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("SELECT * FROM %s(%s)", pq.QuoteIdentifier(function), strings.Join(placeholders, ", "))

	rows, err := s.db.QueryxContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", function, err)
	}
	defer rows.Close()

	var out []storage.Row
	for {
		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", function, err)
			}
			for k, v := range row {
				if b, ok := v.([]byte); ok {
					row[k] = string(b)
				}
			}
			out = append(out, row)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", function, err)
	}
	return out, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}
