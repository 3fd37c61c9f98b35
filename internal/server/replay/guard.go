// Package replay rejects resubmission of a video that was already used
// for an authentication attempt within a time window.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/zeebo/blake3"
)

// Digest identifies a submitted video.
type Digest [32]byte

// Guard remembers keyed BLAKE3 digests of submitted videos. The key is
// random per process so digests are useless outside it.
type Guard struct {
	mu     sync.Mutex
	key    []byte
	window time.Duration
	now    func() time.Time
	seen   map[Digest]time.Time
}

// NewGuard remembers digests for window. A nil now uses time.Now.
func NewGuard(window time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		key:    common.GenerateRandByteArray(32),
		window: window,
		now:    now,
		seen:   make(map[Digest]time.Time),
	}
}

// Sum returns the keyed digest of data.
func (g *Guard) Sum(data []byte) Digest {
	h, err := blake3.NewKeyed(g.key)
	if err != nil {
		// only possible for a key that is not 32 bytes
		panic(err)
	}
	_, _ = h.Write(data)

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Check records data and fails with common.ErrVideoReplayed if the same
// bytes were recorded within the window.
func (g *Guard) Check(data []byte) error {
	d := g.Sum(data)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.seen[d]; ok && now.Sub(at) < g.window {
		return fmt.Errorf("%w: first seen %s ago", common.ErrVideoReplayed, now.Sub(at).Round(time.Second))
	}
	g.seen[d] = now
	return nil
}

// Sweep forgets digests older than the window and returns how many.
func (g *Guard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for d, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, d)
			n++
		}
	}
	return n
}

// Len returns the number of remembered digests.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Run sweeps every interval until ctx is done.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep(g.now())
		}
	}
}
