// internal/guard/inflight.go
package guard

import (
	"sync"
	"sync/atomic"
)

// GlobalKey is the single key used when every attempt must be serialized.
const GlobalKey = "*"

// InFlight is a keyed set of running attempts. Insert-if-absent is atomic, so two callers
// racing on the same key never both win.
type InFlight struct {
	m     sync.Map
	count atomic.Int64
}

func NewInFlight() *InFlight {
	return &InFlight{}
}

// TryAcquire claims key. When ok is true the caller must call release exactly once,
// normally via defer; extra calls are no-ops.
func (g *InFlight) TryAcquire(key string) (release func(), ok bool) {
	if _, loaded := g.m.LoadOrStore(key, struct{}{}); loaded {
		return func() {}, false
	}
	g.count.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.m.Delete(key)
			g.count.Add(-1)
		})
	}, true
}

// Held reports whether key is currently claimed.
func (g *InFlight) Held(key string) bool {
	_, ok := g.m.Load(key)
	return ok
}

// Len returns the number of keys currently held.
func (g *InFlight) Len() int {
	return int(g.count.Load())
}
