package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/steemstream/internal/core/checkpoint"
	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/storage"
	"github.com/vietddude/steemstream/internal/infra/storage/file"
)

// =============================================================================
// Mocks
// =============================================================================

type mockSink struct {
	calls     []string
	counts    map[string]int
	fail      map[string]error
	usernames []string
	queryErr  error
}

func newMockSink() *mockSink {
	return &mockSink{counts: make(map[string]int), fail: make(map[string]error)}
}

func (m *mockSink) InsertBatch(ctx context.Context, procedure string, records any) error {
	m.calls = append(m.calls, procedure)
	m.counts[procedure]++
	return m.fail[procedure]
}

func (m *mockSink) Query(ctx context.Context, function string, params ...any) ([]storage.Row, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	rows := make([]storage.Row, len(m.usernames))
	for i, u := range m.usernames {
		rows[i] = storage.Row{"username": u}
	}
	return rows, nil
}

type mockCommitter struct {
	blocks []uint64
}

func (m *mockCommitter) Commit(ctx context.Context, block uint64) error {
	m.blocks = append(m.blocks, block)
	return nil
}

type mockSnapshot struct {
	replaced [][]string
	promoted int
}

func (m *mockSnapshot) Replace(snapshot []string) { m.replaced = append(m.replaced, snapshot) }
func (m *mockSnapshot) Promote()                  { m.promoted++ }

type mockRecorder struct {
	procedures []string
	counts     []int
}

func (m *mockRecorder) HandleFailure(
	ctx context.Context,
	procedure string,
	block uint64,
	records any,
	count int,
	err error,
) error {
	m.procedures = append(m.procedures, procedure)
	m.counts = append(m.counts, count)
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func TestCategory_Procedure(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryAccounts, "insert_accounts"},
		{CategoryCurationRewards, "insert_curation_rewards"},
		{CategoryLanguages, "insert_languages"},
		{CategoryPostValues, "update_pending_post_percentiles_values"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := tt.category.Procedure(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestAccumulator_ThresholdTriggersOneCallPerNonEmptyCategory(t *testing.T) {
	dir := t.TempDir()
	repo, err := file.NewCheckpointRepo(dir)
	if err != nil {
		t.Fatalf("NewCheckpointRepo failed: %v", err)
	}
	sink := newMockSink()
	snap := &mockSnapshot{}
	acc := NewAccumulator(Config{Threshold: 5}, sink, checkpoint.NewManager(repo), snap, nil)
	ctx := context.Background()
	now := time.Now()

	appendAndCheck := func(block uint64, add func(b *Batch)) *FlushResult {
		add(acc.Batch())
		res, err := acc.MaybeFlush(ctx, block)
		if err != nil {
			t.Fatalf("MaybeFlush failed: %v", err)
		}
		return res
	}

	steps := []func(b *Batch){
		func(b *Batch) { b.Accounts = append(b.Accounts, domain.Account{Username: "a"}) },
		func(b *Batch) { b.Votes = append(b.Votes, domain.Vote{Voter: "a", Time: now}) },
		func(b *Batch) { b.Votes = append(b.Votes, domain.Vote{Voter: "b", Time: now}) },
		func(b *Batch) { b.Tags = append(b.Tags, domain.Tag{Tag: "steem"}) },
	}
	for i, step := range steps {
		if res := appendAndCheck(uint64(100+i), step); res != nil {
			t.Fatalf("Unexpected flush before threshold at step %d", i)
		}
	}
	if len(sink.calls) != 0 {
		t.Fatalf("Expected no sink calls before threshold, got %v", sink.calls)
	}

	res := appendAndCheck(104, func(b *Batch) {
		b.PostValues = append(b.PostValues, domain.PostValue{Author: "x", Permlink: "y"})
	})
	if res == nil || !res.Committed {
		t.Fatalf("Expected committed flush at threshold, got %+v", res)
	}

	expected := map[string]int{
		"insert_accounts":                        1,
		"insert_votes":                           1,
		"insert_tags":                            1,
		"update_pending_post_percentiles_values": 1,
	}
	if len(sink.calls) != len(expected) {
		t.Errorf("Expected %d sink calls, got %v", len(expected), sink.calls)
	}
	for proc, n := range expected {
		if sink.counts[proc] != n {
			t.Errorf("Expected %d call(s) to %s, got %d", n, proc, sink.counts[proc])
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, file.ProcessedFile))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "104" {
		t.Errorf("Expected checkpoint file 104, got %q", data)
	}

	if acc.Batch().Len() != 0 {
		t.Errorf("Expected empty batch after flush, got %d", acc.Batch().Len())
	}
	if len(snap.replaced) != 1 {
		t.Errorf("Expected snapshot refresh, got %d", len(snap.replaced))
	}
}

func TestAccumulator_FlushOrderFollowsCategories(t *testing.T) {
	sink := newMockSink()
	acc := NewAccumulator(Config{Threshold: 1}, sink, &mockCommitter{}, &mockSnapshot{}, nil)
	b := acc.Batch()
	b.BeneficiaryRewards = append(b.BeneficiaryRewards, domain.BeneficiaryRewardGroup{})
	b.Posts = append(b.Posts, domain.Post{})
	b.Accounts = append(b.Accounts, domain.Account{})

	if _, err := acc.Flush(context.Background(), 1); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	want := []string{"insert_accounts", "insert_posts", "insert_beneficiary_rewards"}
	for i, proc := range want {
		if sink.calls[i] != proc {
			t.Errorf("Expected call %d to be %s, got %s", i, proc, sink.calls[i])
		}
	}
}

func TestAccumulator_FailureStillAdvancesByDefault(t *testing.T) {
	sink := newMockSink()
	sink.fail["insert_votes"] = errors.New("deadlock detected")
	committer := &mockCommitter{}
	recorder := &mockRecorder{}
	acc := NewAccumulator(Config{Threshold: 2}, sink, committer, &mockSnapshot{}, recorder)

	b := acc.Batch()
	b.Votes = append(b.Votes, domain.Vote{})
	b.Posts = append(b.Posts, domain.Post{})

	res, err := acc.MaybeFlush(context.Background(), 77)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0] != CategoryVotes {
		t.Errorf("Expected votes to fail, got %v", res.Failed)
	}
	if len(committer.blocks) != 1 || committer.blocks[0] != 77 {
		t.Errorf("Expected commit at 77, got %v", committer.blocks)
	}
	if len(recorder.procedures) != 1 || recorder.procedures[0] != "insert_votes" {
		t.Errorf("Expected failure recorded for insert_votes, got %v", recorder.procedures)
	}
	if acc.Batch().Len() != 0 {
		t.Errorf("Expected batch reset, got %d records", acc.Batch().Len())
	}
}

func TestAccumulator_HoldCheckpointOnFailure(t *testing.T) {
	sink := newMockSink()
	sink.fail["insert_votes"] = errors.New("deadlock detected")
	committer := &mockCommitter{}
	acc := NewAccumulator(
		Config{Threshold: 2, HoldCheckpointOnFailure: true},
		sink, committer, &mockSnapshot{}, nil,
	)

	b := acc.Batch()
	b.Votes = append(b.Votes, domain.Vote{})
	b.Posts = append(b.Posts, domain.Post{})

	_, err := acc.MaybeFlush(context.Background(), 90)
	if !errors.Is(err, ErrFlushIncomplete) {
		t.Fatalf("Expected ErrFlushIncomplete, got %v", err)
	}
	if len(committer.blocks) != 0 {
		t.Errorf("Expected no commit, got %v", committer.blocks)
	}
	if len(b.Votes) != 1 || len(b.Posts) != 0 {
		t.Errorf("Expected only failed votes retained, got votes=%d posts=%d", len(b.Votes), len(b.Posts))
	}
}

func TestAccumulator_HeldRecordsRetryAtNextThreshold(t *testing.T) {
	sink := newMockSink()
	sink.fail["insert_votes"] = errors.New("constraint violation")
	committer := &mockCommitter{}
	recorder := &mockRecorder{}
	acc := NewAccumulator(
		Config{Threshold: 3, HoldCheckpointOnFailure: true},
		sink, committer, &mockSnapshot{}, recorder,
	)
	ctx := context.Background()
	b := acc.Batch()

	b.Votes = append(b.Votes, domain.Vote{}, domain.Vote{}, domain.Vote{})
	if _, err := acc.MaybeFlush(ctx, 100); !errors.Is(err, ErrFlushIncomplete) {
		t.Fatalf("Expected ErrFlushIncomplete, got %v", err)
	}

	for i := 0; i < 10; i++ {
		b.Tags = append(b.Tags, domain.Tag{})
		if _, err := acc.MaybeFlush(ctx, uint64(101+i)); err != nil && !errors.Is(err, ErrFlushIncomplete) {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	// One held flush, then one retry per 3 new tags.
	if sink.counts["insert_votes"] != 4 {
		t.Errorf("Expected 4 insert_votes calls, got %d", sink.counts["insert_votes"])
	}
	if sink.counts["insert_tags"] != 3 {
		t.Errorf("Expected 3 insert_tags calls, got %d", sink.counts["insert_tags"])
	}
	if len(recorder.procedures) != 1 || recorder.counts[0] != 3 {
		t.Errorf("Expected the held votes dead-lettered once, got %v %v", recorder.procedures, recorder.counts)
	}
	if len(committer.blocks) != 0 {
		t.Errorf("Expected no commit while votes are rejected, got %v", committer.blocks)
	}
}

func TestAccumulator_HeldRecordsOnlyNewOnesReported(t *testing.T) {
	sink := newMockSink()
	sink.fail["insert_votes"] = errors.New("constraint violation")
	committer := &mockCommitter{}
	recorder := &mockRecorder{}
	acc := NewAccumulator(
		Config{Threshold: 2, HoldCheckpointOnFailure: true},
		sink, committer, &mockSnapshot{}, recorder,
	)
	ctx := context.Background()
	b := acc.Batch()

	b.Votes = append(b.Votes, domain.Vote{}, domain.Vote{})
	_, _ = acc.MaybeFlush(ctx, 10)
	b.Votes = append(b.Votes, domain.Vote{}, domain.Vote{})
	_, _ = acc.MaybeFlush(ctx, 11)

	if len(recorder.counts) != 2 || recorder.counts[0] != 2 || recorder.counts[1] != 2 {
		t.Errorf("Expected two reports of 2 records, got %v", recorder.counts)
	}

	delete(sink.fail, "insert_votes")
	if _, err := acc.Flush(ctx, 12); err != nil {
		t.Fatalf("Expected flush to succeed, got %v", err)
	}
	if len(committer.blocks) != 1 || committer.blocks[0] != 12 {
		t.Errorf("Expected commit at 12, got %v", committer.blocks)
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty batch, got %d", b.Len())
	}

	sink.fail["insert_votes"] = errors.New("constraint violation")
	b.Votes = append(b.Votes, domain.Vote{}, domain.Vote{})
	_, _ = acc.MaybeFlush(ctx, 13)
	if len(recorder.counts) != 3 || recorder.counts[2] != 2 {
		t.Errorf("Expected a fresh report after commit, got %v", recorder.counts)
	}
}

func TestAccumulator_SnapshotQueryFailurePromotes(t *testing.T) {
	sink := newMockSink()
	sink.queryErr = errors.New("timeout")
	snap := &mockSnapshot{}
	acc := NewAccumulator(Config{Threshold: 1}, sink, &mockCommitter{}, snap, nil)
	acc.Batch().Accounts = append(acc.Batch().Accounts, domain.Account{Username: "z"})

	if _, err := acc.MaybeFlush(context.Background(), 5); err != nil {
		t.Fatalf("MaybeFlush failed: %v", err)
	}
	if snap.promoted != 1 || len(snap.replaced) != 0 {
		t.Errorf("Expected promote on query failure, got promoted=%d replaced=%d", snap.promoted, len(snap.replaced))
	}
}

func TestBatch_LenAndReset(t *testing.T) {
	b := &Batch{}
	b.Tags = make([]domain.Tag, 3)
	b.Comments = make([]domain.Comment, 2)

	if b.Len() != 5 {
		t.Errorf("Expected 5, got %d", b.Len())
	}
	if counts := b.Counts(); counts[CategoryTags] != 3 || counts[CategoryComments] != 2 {
		t.Errorf("Unexpected counts %v", counts)
	}
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Expected 0 after reset, got %d", b.Len())
	}
}
