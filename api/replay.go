package api

import (
	"sync"
	"time"
)

// replayGuard remembers every accepted signed message until its timestamp
// leaves the validity window, after that the signature check rejects it
type replayGuard struct {
	mu       sync.Mutex
	validity time.Duration
	seen     map[string]int64
	cutoff   int64
}

func newReplayGuard(validity time.Duration) *replayGuard {
	return &replayGuard{
		validity: validity,
		seen:     make(map[string]int64),
	}
}

// accept records msg and returns false when it was accepted before
func (g *replayGuard) accept(msg []byte, timestamp int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cutoff := now.Add(-g.validity).Unix(); cutoff > g.cutoff {
		for k, ts := range g.seen {
			if ts < cutoff {
				delete(g.seen, k)
			}
		}
		g.cutoff = cutoff
	}
	key := string(msg)
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = timestamp

	return true
}

func (g *replayGuard) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.seen)
}
