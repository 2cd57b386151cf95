// Package accounts deduplicates account records across one ingestion run.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

// NullAccount is the chain's placeholder for "no account". It is always seen.
const NullAccount = "null"

// ErrAccountNotFound is returned when the chain has no account for a username.
var ErrAccountNotFound = errors.New("account not found")

// Lookup resolves an account's creation time from the chain.
type Lookup interface {
	GetAccount(ctx context.Context, username string) (*domain.AccountInfo, error)
}

// Cache tracks usernames that are either persisted or pending in the current batch.
type Cache struct {
	lookup    Lookup
	mu        sync.RWMutex
	persisted map[string]struct{}
	inFlight  map[string]struct{}
}

// NewCache creates a cache seeded with the persisted username snapshot.
func NewCache(lookup Lookup, snapshot []string) *Cache {
	c := &Cache{lookup: lookup, inFlight: make(map[string]struct{})}
	c.persisted = toSet(snapshot)
	metrics.KnownAccounts.Set(float64(len(c.persisted)))
	return c
}

// Seen reports whether username needs no Account record.
func (c *Cache) Seen(username string) bool {
	key := normalize(username)
	if key == NullAccount {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seenLocked(key)
}

// Resolve returns an Account record for a username not seen before, or nil.
// The name is marked in-flight only once the lookup succeeds, so a failed lookup can be retried.
// The caller must append the returned record to the current batch.
func (c *Cache) Resolve(ctx context.Context, username string) (*domain.Account, error) {
	if c.Seen(username) {
		return nil, nil
	}

	info, err := c.lookup.GetAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", username, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}

	return c.Add(username, info.Created.Time), nil
}

// Add marks username as in-flight with a known creation time and returns its record,
// or nil if it was already seen.
func (c *Cache) Add(username string, created time.Time) *domain.Account {
	key := normalize(username)
	if key == NullAccount {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seenLocked(key) {
		return nil
	}
	c.inFlight[key] = struct{}{}
	return &domain.Account{Username: username, DateCreated: created.UTC()}
}

// Replace swaps in a fresh persisted snapshot and clears the in-flight set in one step.
// Call it right after a successful flush.
func (c *Cache) Replace(snapshot []string) {
	persisted := toSet(snapshot)

	c.mu.Lock()
	c.persisted = persisted
	c.inFlight = make(map[string]struct{})
	c.mu.Unlock()

	metrics.KnownAccounts.Set(float64(len(persisted)))
}

// Promote moves in-flight names into the persisted set. Used when the snapshot
// query fails after a flush so flushed accounts are not inserted again.
func (c *Cache) Promote() {
	c.mu.Lock()
	for k := range c.inFlight {
		c.persisted[k] = struct{}{}
	}
	c.inFlight = make(map[string]struct{})
	n := len(c.persisted)
	c.mu.Unlock()

	metrics.KnownAccounts.Set(float64(n))
}

// Sizes returns the persisted and in-flight counts.
func (c *Cache) Sizes() (persisted, inFlight int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.persisted), len(c.inFlight)
}

func (c *Cache) seenLocked(key string) bool {
	if _, ok := c.persisted[key]; ok {
		return true
	}
	_, ok := c.inFlight[key]
	return ok
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[normalize(n)] = struct{}{}
	}
	return set
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
