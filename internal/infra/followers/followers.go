// Package followers estimates an account's follower count at a past instant
// from the SteemWorld follower history service.
package followers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/httpapi"
)

// DefaultBaseURL is the public SteemWorld SDS endpoint.
const DefaultBaseURL = "https://sds.steemworld.org"

// Config configures the estimator. Estimates are on unless Disabled is set.
type Config struct {
	Disabled          bool          `yaml:"disabled"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Estimator implements the follower estimate used by post and resteem handlers.
type Estimator struct {
	client *httpapi.Client
	now    func() time.Time
}

// NewEstimator creates an estimator against cfg.BaseURL.
func NewEstimator(cfg Config) *Estimator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Estimator{
		client: httpapi.New("followers", httpapi.Config{
			BaseURL:           cfg.BaseURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           cfg.Timeout,
		}),
		now: time.Now,
	}
}

// EstimateFollowers returns the current follower count minus follows gained
// between asOf and now. The result is approximate and never negative.
// Unknown accounts and unreadable answers yield domain.ErrNoFollowerData;
// network and server errors are returned as they are so callers can retry.
func (e *Estimator) EstimateFollowers(ctx context.Context, account string, asOf time.Time) (int, error) {
	var current struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := e.client.GetJSON(ctx, "/followers_api/getFollowers/"+url.PathEscape(account), &current); err != nil {
		return 0, fmt.Errorf("failed to get followers of %s: %w", account, missing(err))
	}

	var history struct {
		Result struct {
			Rows []json.RawMessage `json:"rows"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/followers_api/getFollowedHistory/%s/%d-%d",
		url.PathEscape(account), asOf.Unix(), e.now().Unix())
	if err := e.client.GetJSON(ctx, path, &history); err != nil {
		return 0, fmt.Errorf("failed to get follow history of %s: %w", account, missing(err))
	}

	n := len(current.Result) - len(history.Result.Rows)
	if n < 0 {
		n = 0
	}
	return n, nil
}

// missing marks lookups that will not succeed on retry.
func missing(err error) error {
	var status *httpapi.StatusError
	if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrNoFollowerData, err)
	}
	if errors.Is(err, httpapi.ErrDecode) {
		return fmt.Errorf("%w: %w", domain.ErrNoFollowerData, err)
	}
	return err
}

// Disabled returns zero for every account.
type Disabled struct{}

func (Disabled) EstimateFollowers(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
