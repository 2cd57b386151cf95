package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/storage"
)

// MemoryStorage backs dry runs and tests. It is safe for concurrent use.
type MemoryStorage struct {
	mu         sync.RWMutex
	calls      []SinkCall
	usernames  map[string]struct{}
	results    map[string][]storage.Row
	callErrs   map[string]error
	checkpoint domain.Checkpoint
	failed     []*domain.FailedFlush
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		usernames: make(map[string]struct{}),
		results:   make(map[string][]storage.Row),
		callErrs:  make(map[string]error),
	}
}

// SinkCall is one recorded sink invocation. Call leaves Payload empty.
type SinkCall struct {
	Procedure string
	Payload   json.RawMessage
}

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

type Sink struct {
	store *MemoryStorage
}

func NewSink(store *MemoryStorage) *Sink {
	return &Sink{store: store}
}

func (s *Sink) InsertBatch(ctx context.Context, procedure string, records any) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode records for %s: %w", procedure, err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.calls = append(s.store.calls, SinkCall{Procedure: procedure, Payload: payload})

	// Mirror the accounts table so get_account_usernames behaves like the real store.
	if procedure == "insert_accounts" {
		var accounts []domain.Account
		if err := json.Unmarshal(payload, &accounts); err == nil {
			for _, a := range accounts {
				s.store.usernames[a.Username] = struct{}{}
			}
		}
	}
	return nil
}

func (s *Sink) Call(ctx context.Context, procedure string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if err := s.store.callErrs[procedure]; err != nil {
		return err
	}
	s.store.calls = append(s.store.calls, SinkCall{Procedure: procedure})
	return nil
}

func (s *Sink) Query(ctx context.Context, function string, params ...any) ([]storage.Row, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	if function == "get_account_usernames" {
		rows := make([]storage.Row, 0, len(s.store.usernames))
		for name := range s.store.usernames {
			rows = append(rows, storage.Row{"username": name})
		}
		return rows, nil
	}
	return append([]storage.Row(nil), s.store.results[function]...), nil
}

func (s *Sink) Close() error { return nil }

// SetQueryResult fixes the rows returned for function.
func (s *MemoryStorage) SetQueryResult(function string, rows []storage.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[function] = rows
}

// FailCall makes Call return err for procedure.
func (s *MemoryStorage) FailCall(procedure string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callErrs[procedure] = err
}

// Calls returns every recorded InsertBatch and Call invocation in order.
func (s *MemoryStorage) Calls() []SinkCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SinkCall(nil), s.calls...)
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Load(ctx context.Context) (domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.checkpoint, nil
}

func (r *CheckpointRepo) SaveFlushed(ctx context.Context, processed, highWater uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkpoint.LastProcessed = processed
	r.store.checkpoint.HighWater = highWater
	r.store.checkpoint.UpdatedAt = time.Now()
	return nil
}

func (r *CheckpointRepo) SaveLastSeen(ctx context.Context, block uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkpoint.LastSeen = block
	return nil
}

// -----------------------------------------------------------------------------
// Failed Flush Repository
// -----------------------------------------------------------------------------

type FailedRepo struct{ store *MemoryStorage }

func NewFailedRepo(s *MemoryStorage) *FailedRepo { return &FailedRepo{store: s} }

func (r *FailedRepo) Add(ctx context.Context, f *domain.FailedFlush) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.failed = append(r.store.failed, f)
	return nil
}

func (r *FailedRepo) GetAll(ctx context.Context) ([]*domain.FailedFlush, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]*domain.FailedFlush(nil), r.store.failed...), nil
}

func (r *FailedRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.failed), nil
}
