package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChainTimeLayout is the timestamp format used by Steem nodes. Values are UTC.
const ChainTimeLayout = "2006-01-02T15:04:05"

// ChainTime decodes node timestamps, which carry no zone suffix.
type ChainTime struct {
	time.Time
}

func (t *ChainTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(ChainTimeLayout, strings.TrimSuffix(s, "Z"), time.UTC)
	if err != nil {
		return fmt.Errorf("invalid chain time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// FlexInt holds an integer the node may encode either as a JSON number or as a string.
type FlexInt string

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexInt(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n.String())
	return nil
}

// Int64 returns the value as int64, or 0 if empty or unparseable.
func (f FlexInt) Int64() int64 {
	v, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// AccountInfo is the subset of a chain account needed by ingestion.
type AccountInfo struct {
	Name    string    `json:"name"`
	Created ChainTime `json:"created"`
}

// BlockHeader is the subset of a block used for timestamp lookups.
type BlockHeader struct {
	Number    uint64
	Timestamp ChainTime `json:"timestamp"`
}

// ActiveVote is one entry in a post's current active_votes list.
type ActiveVote struct {
	Voter   string  `json:"voter"`
	RShares FlexInt `json:"rshares"`
}

// Content is a post or comment as returned by get_content.
type Content struct {
	Author             string       `json:"author"`
	Permlink           string       `json:"permlink"`
	Category           string       `json:"category"`
	Title              string       `json:"title"`
	Body               string       `json:"body"`
	JSONMetadata       string       `json:"json_metadata"`
	ParentAuthor       string       `json:"parent_author"`
	ParentPermlink     string       `json:"parent_permlink"`
	RootAuthor         string       `json:"root_author"`
	RootPermlink       string       `json:"root_permlink"`
	AuthorReputation   FlexInt      `json:"author_reputation"`
	CuratorPayoutValue string       `json:"curator_payout_value"`
	Created            ChainTime    `json:"created"`
	ActiveVotes        []ActiveVote `json:"active_votes"`
}
