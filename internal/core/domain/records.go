package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a newly observed chain account.
type Account struct {
	Username    string    `json:"username"`
	DateCreated time.Time `json:"date_created"`
}

type Post struct {
	Author   string    `json:"author"`
	Permlink string    `json:"permlink"`
	Created  time.Time `json:"created"`
	Category string    `json:"category"`
}

// Body carries the post text with its structural statistics at post time.
type Body struct {
	Author           string    `json:"author"`
	Permlink         string    `json:"permlink"`
	Created          time.Time `json:"created"`
	Day              string    `json:"day"`
	AuthorReputation int       `json:"author_reputation"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	WordCount        int       `json:"word_count"`
	SentenceCount    int       `json:"sentence_count"`
	ParagraphCount   int       `json:"paragraph_count"`
	ImageCount       int       `json:"img_count"`
	Followers        int       `json:"followers"`
}

// LanguageSegment summarises the part of a post written in one language.
type LanguageSegment struct {
	Author         string    `json:"author"`
	Permlink       string    `json:"permlink"`
	Created        time.Time `json:"created"`
	Code           string    `json:"code"`
	Words          int       `json:"n_words"`
	Sentences      int       `json:"n_sentences"`
	Paragraphs     int       `json:"n_paragraphs"`
	SpellingErrors int       `json:"spelling_errors"`
}

type Tag struct {
	Author   string    `json:"author"`
	Permlink string    `json:"permlink"`
	Created  time.Time `json:"created"`
	Tag      string    `json:"tag"`
}

type Comment struct {
	Commenter           string    `json:"commenter"`
	Permlink            string    `json:"permlink"`
	ParentAuthor        string    `json:"parent_author"`
	ParentPermlink      string    `json:"parent_permlink"`
	RootAuthor          string    `json:"root_author"`
	RootPermlink        string    `json:"root_permlink"`
	Time                time.Time `json:"time"`
	CommenterReputation int       `json:"commenter_reputation"`
}

// Beneficiary is a reward share assigned to a third party. Percent is 0-100.
type Beneficiary struct {
	Author      string `json:"author"`
	Permlink    string `json:"permlink"`
	Beneficiary string `json:"beneficiary"`
	Percent     int    `json:"pct"`
}

type Vote struct {
	Author   string    `json:"author"`
	Permlink string    `json:"permlink"`
	Voter    string    `json:"voter"`
	Time     time.Time `json:"time"`
	Weight   int       `json:"weight"`
	RShares  int64     `json:"rshares"`
}

type Resteem struct {
	Author      string    `json:"author"`
	Permlink    string    `json:"permlink"`
	ResteemedBy string    `json:"resteemed_by"`
	Followers   int       `json:"followers"`
	Time        time.Time `json:"time"`
}

type AuthorReward struct {
	Author     string    `json:"author"`
	Permlink   string    `json:"permlink"`
	RewardTime time.Time `json:"reward_time"`
	Vests      int64     `json:"vests"`
}

type CurationReward struct {
	Curator string `json:"curator"`
	Vests   int64  `json:"vests"`
}

type CurationRewardGroup struct {
	Author     string           `json:"author"`
	Permlink   string           `json:"permlink"`
	RewardTime time.Time        `json:"reward_time"`
	Rewards    []CurationReward `json:"rewards"`
}

type BeneficiaryReward struct {
	Beneficiary string `json:"beneficiary"`
	Vests       int64  `json:"vests"`
}

type BeneficiaryRewardGroup struct {
	Author     string              `json:"author"`
	Permlink   string              `json:"permlink"`
	RewardTime time.Time           `json:"reward_time"`
	Rewards    []BeneficiaryReward `json:"rewards"`
}

// PostValue is the approximate total payout of a post whose curation rewards closed.
type PostValue struct {
	Author     string          `json:"author"`
	Permlink   string          `json:"permlink"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// PriceDay is one daily OHLCV row. Date is formatted as YYYY-MM-DD.
type PriceDay struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// BodyStats are structural statistics of a markdown body.
type BodyStats struct {
	WordCount      int
	SentenceCount  int
	ParagraphCount int
	ImageCount     int
}

// LanguageStats describes the text of one detected language. Errors is -1 when
// no dictionary is available for the language.
type LanguageStats struct {
	Paragraphs int
	Sentences  []string
	Words      int
	Errors     int
}
