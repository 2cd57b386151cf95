package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload marks an operation whose payload does not have the expected shape.
// Records derived from such operations are skipped, never retried.
var ErrMalformedPayload = errors.New("malformed operation payload")

// ErrNoFollowerData means the follower service has no history for an account.
// The estimate for such an account is zero.
var ErrNoFollowerData = errors.New("no follower data")

// OpType is a Steem operation name.
type OpType string

const (
	OpAccountCreate               OpType = "account_create"
	OpAccountCreateWithDelegation OpType = "account_create_with_delegation"
	OpComment                     OpType = "comment"
	OpCommentOptions              OpType = "comment_options"
	OpVote                        OpType = "vote"
	OpAuthorReward                OpType = "author_reward"
	OpCurationReward              OpType = "curation_reward"
	OpCustomJSON                  OpType = "custom_json"
	OpCommentBenefactorReward     OpType = "comment_benefactor_reward"
)

// DefaultOperationFilter lists every operation type the ingestion pipeline consumes.
var DefaultOperationFilter = []OpType{
	OpAccountCreate,
	OpAccountCreateWithDelegation,
	OpComment,
	OpCommentOptions,
	OpVote,
	OpAuthorReward,
	OpCurationReward,
	OpCustomJSON,
	OpCommentBenefactorReward,
}

// Operation is one entry of the ordered operation stream.
type Operation struct {
	Type      OpType
	BlockNum  uint64
	TrxID     string
	Timestamp time.Time
	Payload   json.RawMessage
}

// Decode unmarshals the payload into v. Shape errors wrap ErrMalformedPayload.
func (o Operation) Decode(v any) error {
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return fmt.Errorf("%w: %s in block %d: %v", ErrMalformedPayload, o.Type, o.BlockNum, err)
	}
	return nil
}

// CommentOp is used for both posts (empty parent author) and comments.
type CommentOp struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

// IsPost reports whether the operation creates top-level content.
func (c CommentOp) IsPost() bool {
	return c.ParentAuthor == ""
}

type CommentOptionsOp struct {
	Author     string            `json:"author"`
	Permlink   string            `json:"permlink"`
	Extensions []json.RawMessage `json:"extensions"`
}

type VoteOp struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int    `json:"weight"`
}

type CustomJSONOp struct {
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
}

type AuthorRewardOp struct {
	Author        string `json:"author"`
	Permlink      string `json:"permlink"`
	VestingPayout string `json:"vesting_payout"`
}

type CurationRewardOp struct {
	Curator         string `json:"curator"`
	Reward          string `json:"reward"`
	CommentAuthor   string `json:"comment_author"`
	CommentPermlink string `json:"comment_permlink"`
}

type CommentBenefactorRewardOp struct {
	Benefactor    string `json:"benefactor"`
	Author        string `json:"author"`
	Permlink      string `json:"permlink"`
	VestingPayout string `json:"vesting_payout"`
}

// AccountCreateOp covers account_create and account_create_with_delegation.
type AccountCreateOp struct {
	Creator        string `json:"creator"`
	NewAccountName string `json:"new_account_name"`
}
