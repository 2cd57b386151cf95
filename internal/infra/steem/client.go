// Package steem reads the Steem chain through the condenser JSON-RPC API.
package steem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/infra/rpc/provider"
	"github.com/vietddude/steemstream/internal/infra/rpc/routing"
)

const (
	methodGlobalProperties = "condenser_api.get_dynamic_global_properties"
	methodOpsInBlock       = "condenser_api.get_ops_in_block"
	methodGetBlock         = "condenser_api.get_block"
	methodGetAccounts      = "condenser_api.get_accounts"
	methodGetContent       = "condenser_api.get_content"
)

// Config holds node settings.
type Config struct {
	Nodes        []string      `yaml:"nodes"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Client implements the chain source on top of a failover router.
type Client struct {
	router       *routing.Router
	retry        routing.RetryConfig
	pollInterval time.Duration
	clock        clock.Clock
}

// NewClient creates a client with one HTTP provider per configured node.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("no steem nodes configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	router := routing.NewRouter()
	for _, node := range cfg.Nodes {
		name := node
		if u, err := url.Parse(node); err == nil && u.Host != "" {
			name = u.Host
		}
		router.AddProvider(provider.NewHTTPProvider(name, node, cfg.Timeout))
	}
	return NewClientWithRouter(router, cfg.PollInterval, clock.New()), nil
}

// NewClientWithRouter creates a client over an existing router.
func NewClientWithRouter(router *routing.Router, pollInterval time.Duration, clk clock.Clock) *Client {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	retry := routing.DefaultRetryConfig
	retry.Clock = clk
	return &Client{
		router:       router,
		retry:        retry,
		pollInterval: pollInterval,
		clock:        clk,
	}
}

// Router exposes the node router for health reporting.
func (c *Client) Router() *routing.Router {
	return c.router
}

// Close releases idle node connections.
func (c *Client) Close() error {
	return c.router.Close()
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) (bool, error) {
	raw, err := routing.CallWithRetryAndFailover(ctx, c.router, method, params, c.retry)
	if err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return true, nil
}

// GetCurrentBlockNumber returns the last irreversible block.
func (c *Client) GetCurrentBlockNumber(ctx context.Context) (uint64, error) {
	var props struct {
		HeadBlockNumber          uint64 `json:"head_block_number"`
		LastIrreversibleBlockNum uint64 `json:"last_irreversible_block_num"`
	}
	ok, err := c.call(ctx, methodGlobalProperties, nil, &props)
	if err != nil {
		return 0, fmt.Errorf("failed to get global properties: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("empty global properties")
	}

	metrics.ChainHeadBlock.Set(float64(props.LastIrreversibleBlockNum))
	return props.LastIrreversibleBlockNum, nil
}

// GetBlock returns the block header, or nil if the block does not exist yet.
func (c *Client) GetBlock(ctx context.Context, number uint64) (*domain.BlockHeader, error) {
	var header domain.BlockHeader
	ok, err := c.call(ctx, methodGetBlock, []any{number}, &header)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}
	if !ok {
		return nil, nil
	}
	header.Number = number
	return &header, nil
}

// GetAccount returns the account, or nil if the chain has none by that name.
func (c *Client) GetAccount(ctx context.Context, username string) (*domain.AccountInfo, error) {
	var accounts []domain.AccountInfo
	if _, err := c.call(ctx, methodGetAccounts, []any{[]string{username}}, &accounts); err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// GetContent returns a post or comment with its active votes.
func (c *Client) GetContent(ctx context.Context, author, permlink string) (*domain.Content, error) {
	var content domain.Content
	ok, err := c.call(ctx, methodGetContent, []any{author, permlink}, &content)
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s/%s: %w", author, permlink, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no content for %s/%s", domain.ErrMalformedPayload, author, permlink)
	}
	return &content, nil
}

type appliedOperation struct {
	TrxID     string             `json:"trx_id"`
	Block     uint64             `json:"block"`
	Timestamp domain.ChainTime   `json:"timestamp"`
	Op        [2]json.RawMessage `json:"op"`
}

// GetOpsInBlock returns every operation in a block, virtual ones included.
func (c *Client) GetOpsInBlock(ctx context.Context, number uint64) ([]domain.Operation, error) {
	var applied []appliedOperation
	if _, err := c.call(ctx, methodOpsInBlock, []any{number, false}, &applied); err != nil {
		return nil, fmt.Errorf("failed to get ops in block %d: %w", number, err)
	}

	ops := make([]domain.Operation, 0, len(applied))
	for i, a := range applied {
		var opType string
		if err := json.Unmarshal(a.Op[0], &opType); err != nil {
			slog.Warn("Skipping operation with unreadable type", "block", number, "index", i, "error", err)
			continue
		}
		blockNum := a.Block
		if blockNum == 0 {
			blockNum = number
		}
		ops = append(ops, domain.Operation{
			Type:      domain.OpType(opType),
			BlockNum:  blockNum,
			TrxID:     a.TrxID,
			Timestamp: a.Timestamp.Time,
			Payload:   a.Op[1],
		})
	}
	return ops, nil
}

// Stream delivers every operation matching filter from start onwards, in
// block order, to fn. It only reads irreversible blocks and polls for new
// ones. It returns when ctx is done, fn fails, or a node call fails.
func (c *Client) Stream(
	ctx context.Context,
	start uint64,
	filter []domain.OpType,
	fn func(domain.Operation) error,
) error {
	wanted := make(map[domain.OpType]bool, len(filter))
	for _, t := range filter {
		wanted[t] = true
	}

	next := start
	if next == 0 {
		next = 1
	}
	var head uint64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if next > head {
			latest, err := c.GetCurrentBlockNumber(ctx)
			if err != nil {
				return err
			}
			head = latest
			if next > head {
				if err := c.sleep(ctx, c.pollInterval); err != nil {
					return err
				}
				continue
			}
		}

		ops, err := c.GetOpsInBlock(ctx, next)
		if err != nil {
			return err
		}
		for _, op := range ops {
			if len(wanted) > 0 && !wanted[op.Type] {
				continue
			}
			if err := fn(op); err != nil {
				return err
			}
		}
		next++
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := c.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
