package accounts

import (
	"context"
	"fmt"

	"github.com/vietddude/steemstream/internal/infra/storage"
)

// SnapshotQuery is the sink function listing every persisted username.
const SnapshotQuery = "get_account_usernames"

// Querier runs named sink queries.
type Querier interface {
	Query(ctx context.Context, function string, params ...any) ([]storage.Row, error)
}

// LoadSnapshot reads the persisted usernames from the sink.
func LoadSnapshot(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.Query(ctx, SnapshotQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", SnapshotQuery, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		switch v := row["username"].(type) {
		case string:
			names = append(names, v)
		case []byte:
			names = append(names, string(v))
		}
	}
	return names, nil
}
