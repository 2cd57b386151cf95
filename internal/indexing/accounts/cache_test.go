package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/storage"
)

type mockLookup struct {
	calls   map[string]int
	created time.Time
	err     error
}

func newMockLookup() *mockLookup {
	return &mockLookup{
		calls:   make(map[string]int),
		created: time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockLookup) GetAccount(ctx context.Context, username string) (*domain.AccountInfo, error) {
	m.calls[username]++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.AccountInfo{Name: username, Created: domain.ChainTime{Time: m.created}}, nil
}

func TestCache_NullIsAlwaysSeen(t *testing.T) {
	lookup := newMockLookup()
	c := NewCache(lookup, nil)

	if !c.Seen("null") {
		t.Error("Expected null to be seen")
	}
	acc, err := c.Resolve(context.Background(), "null")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if acc != nil {
		t.Errorf("Expected no record for null, got %+v", acc)
	}
	if len(lookup.calls) != 0 {
		t.Errorf("Expected no lookups, got %v", lookup.calls)
	}
}

func TestCache_SeenStaysTrue(t *testing.T) {
	lookup := newMockLookup()
	c := NewCache(lookup, []string{"bob"})
	ctx := context.Background()

	acc, err := c.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if acc == nil || acc.Username != "alice" {
		t.Fatalf("Expected record for alice, got %+v", acc)
	}
	if !acc.DateCreated.Equal(lookup.created) {
		t.Errorf("Expected created %v, got %v", lookup.created, acc.DateCreated)
	}

	for _, name := range []string{"alice", "Alice", "ALICE", "bob", "Bob"} {
		if !c.Seen(name) {
			t.Errorf("Expected %s to be seen", name)
		}
		again, err := c.Resolve(ctx, name)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", name, err)
		}
		if again != nil {
			t.Errorf("Expected no second record for %s", name)
		}
	}

	if lookup.calls["alice"] != 1 {
		t.Errorf("Expected 1 lookup for alice, got %d", lookup.calls["alice"])
	}

	// Still seen after the flush swaps in a snapshot that includes it.
	c.Replace([]string{"alice", "bob"})
	if !c.Seen("alice") {
		t.Error("Expected alice to be seen after Replace")
	}
}

func TestCache_FailedLookupNotMarked(t *testing.T) {
	lookup := newMockLookup()
	lookup.err = errors.New("connection reset")
	c := NewCache(lookup, nil)

	if _, err := c.Resolve(context.Background(), "carol"); err == nil {
		t.Fatal("Expected error")
	}
	if c.Seen("carol") {
		t.Error("Expected carol not to be seen after failed lookup")
	}

	lookup.err = nil
	acc, err := c.Resolve(context.Background(), "carol")
	if err != nil || acc == nil {
		t.Fatalf("Expected record on retry, got %+v, %v", acc, err)
	}
}

func TestCache_ReplaceClearsInFlight(t *testing.T) {
	c := NewCache(newMockLookup(), nil)
	c.Add("dave", time.Now())

	c.Replace([]string{"erin"})
	persisted, inFlight := c.Sizes()
	if persisted != 1 || inFlight != 0 {
		t.Errorf("Expected sizes 1/0, got %d/%d", persisted, inFlight)
	}
	if c.Seen("dave") {
		t.Error("Expected dave to be dropped when snapshot lacks it")
	}
}

func TestCache_Promote(t *testing.T) {
	c := NewCache(newMockLookup(), []string{"erin"})
	c.Add("frank", time.Now())

	c.Promote()
	persisted, inFlight := c.Sizes()
	if persisted != 2 || inFlight != 0 {
		t.Errorf("Expected sizes 2/0, got %d/%d", persisted, inFlight)
	}
	if !c.Seen("frank") {
		t.Error("Expected frank to stay seen after Promote")
	}
}

type mockQuerier struct {
	rows []storage.Row
}

func (m *mockQuerier) Query(ctx context.Context, function string, params ...any) ([]storage.Row, error) {
	if function != SnapshotQuery {
		return nil, errors.New("unexpected function " + function)
	}
	return m.rows, nil
}

func TestLoadSnapshot(t *testing.T) {
	q := &mockQuerier{rows: []storage.Row{
		{"username": "alice"},
		{"username": []byte("bob")},
		{"other": "x"},
	}}

	names, err := LoadSnapshot(context.Background(), q)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("Expected [alice bob], got %v", names)
	}
}
