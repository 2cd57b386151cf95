package handler

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/batch"
	"github.com/vietddude/steemstream/internal/indexing/reward"
)

func (p *Processor) handleAuthorReward(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var r domain.AuthorRewardOp
	if err := op.Decode(&r); err != nil {
		return err
	}
	amount, err := vests(r.VestingPayout)
	if err != nil {
		return err
	}
	if err := p.resolve(ctx, b, r.Author); err != nil {
		return err
	}

	b.AuthorRewards = append(b.AuthorRewards, domain.AuthorReward{
		Author:     r.Author,
		Permlink:   r.Permlink,
		RewardTime: op.Timestamp.UTC(),
		Vests:      amount,
	})
	return nil
}

func (p *Processor) handleCurationReward(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var r domain.CurationRewardOp
	if err := op.Decode(&r); err != nil {
		return err
	}
	amount, err := vests(r.Reward)
	if err != nil {
		return err
	}
	if err := p.resolve(ctx, b, r.CommentAuthor, r.Curator); err != nil {
		return err
	}

	key := reward.Key{Author: r.CommentAuthor, Permlink: r.CommentPermlink}
	var value *domain.PostValue
	if closing, ok := p.curation.Closes(key); ok {
		value, err = p.closingValue(ctx, closing)
		if err != nil {
			return err
		}
	}

	next, closed := p.curation.Observe(key, op.Timestamp.UTC(), domain.CurationReward{
		Curator: r.Curator,
		Vests:   amount,
	})
	p.curation = next
	if closed != nil {
		b.CurationRewards = append(b.CurationRewards, curationGroup(closed))
		if value != nil {
			b.PostValues = append(b.PostValues, *value)
		}
	}
	return nil
}

func (p *Processor) handleBeneficiaryReward(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var r domain.CommentBenefactorRewardOp
	if err := op.Decode(&r); err != nil {
		return err
	}
	amount, err := vests(r.VestingPayout)
	if err != nil {
		return err
	}
	if err := p.resolve(ctx, b, r.Author, r.Benefactor); err != nil {
		return err
	}

	key := reward.Key{Author: r.Author, Permlink: r.Permlink}
	next, closed := p.beneficiary.Observe(key, op.Timestamp.UTC(), domain.BeneficiaryReward{
		Beneficiary: r.Benefactor,
		Vests:       amount,
	})
	p.beneficiary = next
	if closed != nil {
		b.BeneficiaryRewards = append(b.BeneficiaryRewards, beneficiaryGroup(closed))
	}
	return nil
}

// closingValue computes the payout of the post whose curation group is about
// to close. A post with no content or an unreadable payout yields no value.
func (p *Processor) closingValue(ctx context.Context, key reward.Key) (*domain.PostValue, error) {
	content, err := p.content(ctx, key.Author, key.Permlink)
	if err == nil {
		var value decimal.Decimal
		value, err = postValue(content.CuratorPayoutValue)
		if err == nil {
			return &domain.PostValue{Author: key.Author, Permlink: key.Permlink, TotalValue: value}, nil
		}
	}
	if errors.Is(err, domain.ErrMalformedPayload) {
		p.logger.Warn("Skipping post value", "author", key.Author, "permlink", key.Permlink, "error", err)
		return nil, nil
	}
	return nil, err
}

// Close flushes both reward aggregators into b. It is called once on shutdown;
// the post value of the last curation group is looked up on a best-effort basis.
func (p *Processor) Close(ctx context.Context, b *batch.Batch) {
	var closed *reward.Group[domain.CurationReward]
	p.curation, closed = p.curation.Flush()
	if closed != nil {
		b.CurationRewards = append(b.CurationRewards, curationGroup(closed))
		value, err := p.closingValue(ctx, closed.Key)
		if err != nil {
			p.logger.Warn("Post value lookup failed on shutdown", "author", closed.Key.Author, "error", err)
		} else if value != nil {
			b.PostValues = append(b.PostValues, *value)
		}
	}

	var benClosed *reward.Group[domain.BeneficiaryReward]
	p.beneficiary, benClosed = p.beneficiary.Flush()
	if benClosed != nil {
		b.BeneficiaryRewards = append(b.BeneficiaryRewards, beneficiaryGroup(benClosed))
	}
}

// OpenGroups reports whether either aggregator holds an open group.
func (p *Processor) OpenGroups() bool {
	return !p.curation.IsEmpty() || !p.beneficiary.IsEmpty()
}

func curationGroup(g *reward.Group[domain.CurationReward]) domain.CurationRewardGroup {
	return domain.CurationRewardGroup{
		Author:     g.Key.Author,
		Permlink:   g.Key.Permlink,
		RewardTime: g.OpenedAt,
		Rewards:    g.Rewards,
	}
}

func beneficiaryGroup(g *reward.Group[domain.BeneficiaryReward]) domain.BeneficiaryRewardGroup {
	return domain.BeneficiaryRewardGroup{
		Author:     g.Key.Author,
		Permlink:   g.Key.Permlink,
		RewardTime: g.OpenedAt,
		Rewards:    g.Rewards,
	}
}
