package handler

import (
	"context"
	"encoding/json"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/batch"
)

const (
	followPluginID = "follow"
	reblogAction   = "reblog"
)

func (p *Processor) handleVote(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var v domain.VoteOp
	if err := op.Decode(&v); err != nil {
		return err
	}
	if err := p.resolve(ctx, b, v.Voter); err != nil {
		return err
	}

	content, err := p.content(ctx, v.Author, v.Permlink)
	if err != nil {
		return err
	}

	var rshares int64
	for _, av := range content.ActiveVotes {
		if av.Voter == v.Voter {
			rshares = av.RShares.Int64()
			break
		}
	}

	b.Votes = append(b.Votes, domain.Vote{
		Author:   v.Author,
		Permlink: v.Permlink,
		Voter:    v.Voter,
		Time:     op.Timestamp.UTC(),
		Weight:   v.Weight / 100,
		RShares:  rshares,
	})
	return nil
}

type reblog struct {
	Account  string
	Author   string
	Permlink string
}

// parseReblog accepts only ["reblog", {account, author, permlink}].
func parseReblog(raw string) (reblog, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parts); err != nil || len(parts) != 2 {
		return reblog{}, false
	}

	var action string
	if err := json.Unmarshal(parts[0], &action); err != nil || action != reblogAction {
		return reblog{}, false
	}

	var fields struct {
		Account  *string `json:"account"`
		Author   *string `json:"author"`
		Permlink *string `json:"permlink"`
	}
	if err := json.Unmarshal(parts[1], &fields); err != nil {
		return reblog{}, false
	}
	if fields.Account == nil || fields.Author == nil || fields.Permlink == nil {
		return reblog{}, false
	}
	return reblog{Account: *fields.Account, Author: *fields.Author, Permlink: *fields.Permlink}, true
}

func (p *Processor) handleResteem(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var cj domain.CustomJSONOp
	if err := op.Decode(&cj); err != nil {
		return err
	}
	if cj.ID != followPluginID {
		return nil
	}
	r, ok := parseReblog(cj.JSON)
	if !ok {
		return nil
	}

	if err := p.resolve(ctx, b, r.Account); err != nil {
		return err
	}
	followers, err := p.followerCount(ctx, r.Account, op.Timestamp)
	if err != nil {
		return err
	}

	b.Resteems = append(b.Resteems, domain.Resteem{
		Author:      r.Author,
		Permlink:    r.Permlink,
		ResteemedBy: r.Account,
		Followers:   followers,
		Time:        op.Timestamp.UTC(),
	})
	return nil
}

// handleAccountCreate records the new account with the block time as its
// creation time. No chain lookup is needed.
func (p *Processor) handleAccountCreate(op domain.Operation, b *batch.Batch) error {
	var ac domain.AccountCreateOp
	if err := op.Decode(&ac); err != nil {
		return err
	}
	if acct := p.accounts.Add(ac.NewAccountName, op.Timestamp); acct != nil {
		b.Accounts = append(b.Accounts, *acct)
	}
	return nil
}
