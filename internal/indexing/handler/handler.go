// Package handler turns stream operations into batch records.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/batch"
	"github.com/vietddude/steemstream/internal/indexing/reward"
)

// ChainReader provides the point-in-time chain lookups handlers need.
type ChainReader interface {
	GetAccount(ctx context.Context, username string) (*domain.AccountInfo, error)
	GetContent(ctx context.Context, author, permlink string) (*domain.Content, error)
}

// Analyzer computes body statistics.
type Analyzer interface {
	Analyze(markdown string) domain.BodyStats
	SegmentByLanguage(html string) map[string]domain.LanguageStats
}

// FollowerEstimator returns an account's follower count at a point in time.
type FollowerEstimator interface {
	EstimateFollowers(ctx context.Context, account string, asOf time.Time) (int, error)
}

// AccountResolver deduplicates account records.
type AccountResolver interface {
	Resolve(ctx context.Context, username string) (*domain.Account, error)
	Add(username string, created time.Time) *domain.Account
}

// Category is the handler an operation is routed to.
type Category int

const (
	CategoryIgnored Category = iota
	CategoryPost
	CategoryComment
	CategoryBeneficiary
	CategoryVote
	CategoryResteem
	CategoryAuthorReward
	CategoryCurationReward
	CategoryBeneficiaryReward
	CategoryAccountCreate
)

func (c Category) String() string {
	switch c {
	case CategoryPost:
		return "post"
	case CategoryComment:
		return "comment"
	case CategoryBeneficiary:
		return "beneficiary"
	case CategoryVote:
		return "vote"
	case CategoryResteem:
		return "resteem"
	case CategoryAuthorReward:
		return "author_reward"
	case CategoryCurationReward:
		return "curation_reward"
	case CategoryBeneficiaryReward:
		return "beneficiary_reward"
	case CategoryAccountCreate:
		return "account_create"
	default:
		return "ignored"
	}
}

// Classify routes op by type. Comments are split into posts and replies by
// their parent author; a comment payload that cannot be decoded is classified
// as a comment so that Handle reports it as malformed.
func Classify(op domain.Operation) Category {
	switch op.Type {
	case domain.OpComment:
		var c domain.CommentOp
		if err := op.Decode(&c); err == nil && c.IsPost() {
			return CategoryPost
		}
		return CategoryComment
	case domain.OpCommentOptions:
		return CategoryBeneficiary
	case domain.OpVote:
		return CategoryVote
	case domain.OpCustomJSON:
		return CategoryResteem
	case domain.OpAuthorReward:
		return CategoryAuthorReward
	case domain.OpCurationReward:
		return CategoryCurationReward
	case domain.OpCommentBenefactorReward:
		return CategoryBeneficiaryReward
	case domain.OpAccountCreate, domain.OpAccountCreateWithDelegation:
		return CategoryAccountCreate
	}
	return CategoryIgnored
}

// Config controls which operations are handled.
type Config struct {
	// RewardsOnlyBelow limits blocks below this number to votes and reward
	// groups. Zero disables the limit.
	RewardsOnlyBelow uint64
}

// Processor dispatches operations to handlers. It owns the reward aggregators
// and is not safe for concurrent use.
type Processor struct {
	cfg       Config
	chain     ChainReader
	analyzer  Analyzer
	followers FollowerEstimator
	accounts  AccountResolver
	logger    *slog.Logger

	curation    reward.State[domain.CurationReward]
	beneficiary reward.State[domain.BeneficiaryReward]
}

// NewProcessor creates a processor with empty aggregators.
func NewProcessor(
	cfg Config,
	chain ChainReader,
	analyzer Analyzer,
	followers FollowerEstimator,
	accounts AccountResolver,
) *Processor {
	return &Processor{
		cfg:       cfg,
		chain:     chain,
		analyzer:  analyzer,
		followers: followers,
		accounts:  accounts,
		logger:    slog.Default().With("component", "handler"),
	}
}

// Handle appends the records derived from op to b. Every lookup that can fail
// happens before any non-account record is appended, so a failed call can be
// retried with the same operation without duplicating records.
func (p *Processor) Handle(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	category := Classify(op)
	if !p.handles(category, op.BlockNum) {
		return nil
	}

	switch category {
	case CategoryPost:
		return p.handlePost(ctx, op, b)
	case CategoryComment:
		return p.handleComment(ctx, op, b)
	case CategoryBeneficiary:
		return p.handleBeneficiaries(ctx, op, b)
	case CategoryVote:
		return p.handleVote(ctx, op, b)
	case CategoryResteem:
		return p.handleResteem(ctx, op, b)
	case CategoryAuthorReward:
		return p.handleAuthorReward(ctx, op, b)
	case CategoryCurationReward:
		return p.handleCurationReward(ctx, op, b)
	case CategoryBeneficiaryReward:
		return p.handleBeneficiaryReward(ctx, op, b)
	case CategoryAccountCreate:
		return p.handleAccountCreate(op, b)
	}
	return nil
}

func (p *Processor) handles(c Category, block uint64) bool {
	if c == CategoryIgnored {
		return false
	}
	if p.cfg.RewardsOnlyBelow == 0 || block >= p.cfg.RewardsOnlyBelow {
		return true
	}
	switch c {
	case CategoryVote, CategoryCurationReward, CategoryBeneficiaryReward:
		return true
	}
	return false
}

// resolve passes each username through the dedup cache and appends new
// accounts to b immediately. Accounts resolved before a failure stay in the
// batch and are seen on retry.
func (p *Processor) resolve(ctx context.Context, b *batch.Batch, usernames ...string) error {
	for _, name := range usernames {
		acct, err := p.accounts.Resolve(ctx, name)
		if err != nil {
			return err
		}
		if acct != nil {
			b.Accounts = append(b.Accounts, *acct)
		}
	}
	return nil
}

func (p *Processor) content(ctx context.Context, author, permlink string) (*domain.Content, error) {
	content, err := p.chain.GetContent(ctx, author, permlink)
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s/%s: %w", author, permlink, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: no content for %s/%s", domain.ErrMalformedPayload, author, permlink)
	}
	return content, nil
}

// followerCount is zero for accounts the follower service knows nothing
// about. Other estimator errors are returned so the operation is retried.
func (p *Processor) followerCount(ctx context.Context, account string, at time.Time) (int, error) {
	if p.followers == nil {
		return 0, nil
	}
	n, err := p.followers.EstimateFollowers(ctx, account, at)
	if errors.Is(err, domain.ErrNoFollowerData) {
		p.logger.Debug("No follower data, using 0", "account", account, "error", err)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to estimate followers of %s: %w", account, err)
	}
	return n, nil
}
