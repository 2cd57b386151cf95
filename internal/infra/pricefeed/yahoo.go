// Package pricefeed fetches daily OHLCV rows from the Yahoo Finance chart API.
package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/httpapi"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// pricePlaces is the precision of stored prices.
const pricePlaces = 4

// Config configures the Yahoo source.
type Config struct {
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Yahoo implements the price source.
type Yahoo struct {
	client *httpapi.Client
}

func NewYahoo(cfg Config) *Yahoo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	return &Yahoo{client: httpapi.New("pricefeed", httpapi.Config{
		BaseURL:           cfg.BaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             1,
		Timeout:           cfg.Timeout,
	})}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyOHLCV returns the first complete daily row in [start, endExclusive),
// or nil when the source has none.
func (y *Yahoo) DailyOHLCV(
	ctx context.Context,
	symbol string,
	start, endExclusive time.Time,
) (*domain.PriceDay, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(endExclusive.Unix()))
	q.Set("interval", "1d")

	var resp chartResponse
	path := "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
	if err := y.client.GetJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s chart: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error for %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	for i, ts := range result.Timestamp {
		at := time.Unix(ts, 0).UTC()
		if at.Before(start) || !at.Before(endExclusive) {
			continue
		}
		open, high, low, closing, volume := at64(quote.Open, i), at64(quote.High, i), at64(quote.Low, i),
			at64(quote.Close, i), at64(quote.Volume, i)
		if open == nil || high == nil || low == nil || closing == nil || volume == nil {
			continue
		}
		return &domain.PriceDay{
			Date:   start.UTC().Format(time.DateOnly),
			Open:   decimal.NewFromFloat(*open).Round(pricePlaces),
			High:   decimal.NewFromFloat(*high).Round(pricePlaces),
			Low:    decimal.NewFromFloat(*low).Round(pricePlaces),
			Close:  decimal.NewFromFloat(*closing).Round(pricePlaces),
			Volume: int64(*volume),
		}, nil
	}
	return nil, nil
}

func at64(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
