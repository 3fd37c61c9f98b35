// Package challenges issues single-use motion challenges and resolves them
// exactly once for the user they were issued to.
package challenges

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
)

// IDBytes is the number of random bytes in a challenge id.
const IDBytes = 32

// DefaultMaxPendingPerUser bounds outstanding challenges per user.
const DefaultMaxPendingPerUser = 5

// State is the lifecycle state of a challenge.
type State string

const (
	StateIssued   State = "issued"
	StateConsumed State = "consumed"
	StateExpired  State = "expired"
)

// Challenge is one issued motion challenge.
type Challenge struct {
	ID          string
	Text        string
	Description string
	Direction   motion.Direction
	UserID      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	State       State
}

// Director owns the challenge arena. It is safe for concurrent use.
type Director struct {
	mu         sync.Mutex
	byID       map[string]*Challenge
	pending    map[string][]string // user id -> challenge ids in issue order
	ttl        time.Duration
	maxPending int
	now        func() time.Time
	intN       func(n int) int
	newID      func() (string, error)
	logger     logging.Logger
}

// Option customizes a Director.
type Option func(*Director)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Director) { d.now = now }
}

// WithRandom replaces the source used to pick directions. intN must
// return a value in [0, n).
func WithRandom(intN func(n int) int) Option {
	return func(d *Director) { d.intN = intN }
}

// WithIDGenerator replaces the random id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(d *Director) { d.newID = newID }
}

// WithMaxPending overrides DefaultMaxPendingPerUser.
func WithMaxPending(n int) Option {
	return func(d *Director) { d.maxPending = n }
}

func NewDirector(ttl time.Duration, logger logging.Logger, opts ...Option) *Director {
	d := &Director{
		byID:       make(map[string]*Challenge),
		pending:    make(map[string][]string),
		ttl:        ttl,
		maxPending: DefaultMaxPendingPerUser,
		now:        time.Now,
		intN:       rand.IntN,
		newID:      func() (string, error) { return common.MakeRandHexString(IDBytes) },
		logger:     logger.With("module", "challenges"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Issue creates a challenge for userID with a uniformly chosen direction.
func (d *Director) Issue(ctx context.Context, userID string) (*Challenge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrValidation)
	}

	id, err := d.newID()
	if err != nil {
		return nil, fmt.Errorf("challenge id: %w", err)
	}

	t := Catalog[d.intN(len(Catalog))]

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.byID[id]; dup {
		return nil, fmt.Errorf("%w: challenge id collision", common.ErrorInternal)
	}

	now := d.now()
	c := &Challenge{
		ID:          id,
		Text:        t.Text,
		Description: t.Description,
		Direction:   t.Direction,
		UserID:      userID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(d.ttl),
		State:       StateIssued,
	}

	ids := d.livePending(userID, now)
	for d.maxPending > 0 && len(ids) >= d.maxPending {
		delete(d.byID, ids[0])
		d.logger.Debug(ctx, "dropped oldest pending challenge", "user_id", userID, "challenge_id", ids[0])
		ids = ids[1:]
	}
	d.pending[userID] = append(ids, id)
	d.byID[id] = c

	d.logger.Info(ctx, "challenge issued", "user_id", userID, "direction", c.Direction)
	out := *c
	return &out, nil
}

// livePending prunes the user's pending list down to challenges that can
// still be resolved. Must be called with mu held.
func (d *Director) livePending(userID string, now time.Time) []string {
	ids := d.pending[userID]
	live := ids[:0]
	for _, id := range ids {
		c, ok := d.byID[id]
		if ok && c.State == StateIssued && !now.After(c.ExpiresAt) {
			live = append(live, id)
		}
	}
	return live
}

// Resolve consumes the challenge id for userID. Of any number of concurrent
// calls for one id at most one succeeds.
func (d *Director) Resolve(ctx context.Context, id, userID string) (*Challenge, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.byID[id]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("%w: %q", common.ErrChallengeNotFound, id)
	}

	if c.State == StateIssued && d.now().After(c.ExpiresAt) {
		c.State = StateExpired
	}
	if c.State != StateIssued {
		return nil, fmt.Errorf("%w: challenge is %s", common.ErrChallengeExpired, c.State)
	}

	c.State = StateConsumed
	d.logger.Debug(ctx, "challenge consumed", "user_id", userID, "direction", c.Direction)
	out := *c
	return &out, nil
}

// Sweep drops every consumed, expired or timed out challenge and returns
// how many were removed.
func (d *Director) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, c := range d.byID {
		if c.State != StateIssued || now.After(c.ExpiresAt) {
			delete(d.byID, id)
			removed++
		}
	}
	for userID := range d.pending {
		if ids := d.livePending(userID, now); len(ids) > 0 {
			d.pending[userID] = ids
		} else {
			delete(d.pending, userID)
		}
	}
	return removed
}

// Len returns the number of records held, including resolved ones not yet
// swept.
func (d *Director) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

// Run sweeps every interval until ctx is done.
func (d *Director) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(d.now()); n > 0 {
				d.logger.Debug(ctx, "swept challenges", "count", n)
			}
		}
	}
}
