// Package batch accumulates typed records and flushes them through the sink.
package batch

import (
	"github.com/vietddude/steemstream/internal/core/domain"
)

// Category names a record list. The sink procedure is derived from it.
type Category string

const (
	CategoryAccounts           Category = "accounts"
	CategoryPosts              Category = "posts"
	CategoryBeneficiaries      Category = "beneficiaries"
	CategoryBodies             Category = "bodies"
	CategoryLanguages          Category = "languages"
	CategoryTags               Category = "tags"
	CategoryComments           Category = "comments"
	CategoryResteems           Category = "resteems"
	CategoryPostValues         Category = "post_values"
	CategoryVotes              Category = "votes"
	CategoryAuthorRewards      Category = "author_rewards"
	CategoryCurationRewards    Category = "curation_rewards"
	CategoryBeneficiaryRewards Category = "beneficiary_rewards"
)

// PostValuesProcedure updates existing posts instead of inserting rows.
const PostValuesProcedure = "update_pending_post_percentiles_values"

// Categories lists every category in flush order. Accounts go first so that
// rows referencing them can be written in the same window.
var Categories = []Category{
	CategoryAccounts,
	CategoryPosts,
	CategoryBeneficiaries,
	CategoryBodies,
	CategoryLanguages,
	CategoryTags,
	CategoryComments,
	CategoryResteems,
	CategoryPostValues,
	CategoryVotes,
	CategoryAuthorRewards,
	CategoryCurationRewards,
	CategoryBeneficiaryRewards,
}

// Procedure returns the sink procedure used to write c.
func (c Category) Procedure() string {
	if c == CategoryPostValues {
		return PostValuesProcedure
	}
	return "insert_" + string(c)
}

// Batch holds the records of the current window, one list per category.
type Batch struct {
	Accounts           []domain.Account
	Posts              []domain.Post
	Beneficiaries      []domain.Beneficiary
	Bodies             []domain.Body
	Languages          []domain.LanguageSegment
	Tags               []domain.Tag
	Comments           []domain.Comment
	Resteems           []domain.Resteem
	PostValues         []domain.PostValue
	Votes              []domain.Vote
	AuthorRewards      []domain.AuthorReward
	CurationRewards    []domain.CurationRewardGroup
	BeneficiaryRewards []domain.BeneficiaryRewardGroup
}

// Records returns the list for c and its length.
func (b *Batch) Records(c Category) (any, int) {
	switch c {
	case CategoryAccounts:
		return b.Accounts, len(b.Accounts)
	case CategoryPosts:
		return b.Posts, len(b.Posts)
	case CategoryBeneficiaries:
		return b.Beneficiaries, len(b.Beneficiaries)
	case CategoryBodies:
		return b.Bodies, len(b.Bodies)
	case CategoryLanguages:
		return b.Languages, len(b.Languages)
	case CategoryTags:
		return b.Tags, len(b.Tags)
	case CategoryComments:
		return b.Comments, len(b.Comments)
	case CategoryResteems:
		return b.Resteems, len(b.Resteems)
	case CategoryPostValues:
		return b.PostValues, len(b.PostValues)
	case CategoryVotes:
		return b.Votes, len(b.Votes)
	case CategoryAuthorRewards:
		return b.AuthorRewards, len(b.AuthorRewards)
	case CategoryCurationRewards:
		return b.CurationRewards, len(b.CurationRewards)
	case CategoryBeneficiaryRewards:
		return b.BeneficiaryRewards, len(b.BeneficiaryRewards)
	}
	return nil, 0
}

// Since returns the records of c appended after the first from entries.
func (b *Batch) Since(c Category, from int) (any, int) {
	switch c {
	case CategoryAccounts:
		return tail(b.Accounts, from)
	case CategoryPosts:
		return tail(b.Posts, from)
	case CategoryBeneficiaries:
		return tail(b.Beneficiaries, from)
	case CategoryBodies:
		return tail(b.Bodies, from)
	case CategoryLanguages:
		return tail(b.Languages, from)
	case CategoryTags:
		return tail(b.Tags, from)
	case CategoryComments:
		return tail(b.Comments, from)
	case CategoryResteems:
		return tail(b.Resteems, from)
	case CategoryPostValues:
		return tail(b.PostValues, from)
	case CategoryVotes:
		return tail(b.Votes, from)
	case CategoryAuthorRewards:
		return tail(b.AuthorRewards, from)
	case CategoryCurationRewards:
		return tail(b.CurationRewards, from)
	case CategoryBeneficiaryRewards:
		return tail(b.BeneficiaryRewards, from)
	}
	return nil, 0
}

func tail[T any](records []T, from int) (any, int) {
	if from >= len(records) {
		return []T(nil), 0
	}
	if from < 0 {
		from = 0
	}
	return records[from:], len(records) - from
}

// Clear empties the list for c.
func (b *Batch) Clear(c Category) {
	switch c {
	case CategoryAccounts:
		b.Accounts = nil
	case CategoryPosts:
		b.Posts = nil
	case CategoryBeneficiaries:
		b.Beneficiaries = nil
	case CategoryBodies:
		b.Bodies = nil
	case CategoryLanguages:
		b.Languages = nil
	case CategoryTags:
		b.Tags = nil
	case CategoryComments:
		b.Comments = nil
	case CategoryResteems:
		b.Resteems = nil
	case CategoryPostValues:
		b.PostValues = nil
	case CategoryVotes:
		b.Votes = nil
	case CategoryAuthorRewards:
		b.AuthorRewards = nil
	case CategoryCurationRewards:
		b.CurationRewards = nil
	case CategoryBeneficiaryRewards:
		b.BeneficiaryRewards = nil
	}
}

// Len returns the record count across all categories.
func (b *Batch) Len() int {
	total := 0
	for _, c := range Categories {
		_, n := b.Records(c)
		total += n
	}
	return total
}

// Counts returns the record count per category.
func (b *Batch) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		_, n := b.Records(c)
		counts[c] = n
	}
	return counts
}

// Reset empties every category.
func (b *Batch) Reset() {
	for _, c := range Categories {
		b.Clear(c)
	}
}
