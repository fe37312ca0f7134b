// Package session provides the striped-lock substrate that serializes all
// swipe and undo operations for a single user without serializing unrelated
// users.
package session

import (
	"hash/fnv"
	"sync"
)

// DefaultStripeCount is used when config supplies a non-positive count.
const DefaultStripeCount = 256

// Stripes is a fixed-size set of independent mutexes indexed by a hash of
// the user id. The slice is built fully at construction and never replaced,
// so concurrent first use cannot observe a partially built table. Users
// colliding on a stripe are serialized; that cost is bounded by the fixed
// stripe count.
type Stripes struct {
	locks []sync.Mutex
}

// New creates a stripe table with n locks.
func New(n int) *Stripes {
	if n <= 0 {
		n = DefaultStripeCount
	}
	return &Stripes{locks: make([]sync.Mutex, n)}
}

// For returns the lock guarding all per-user mutable state for userID.
// Stable: the same user always maps to the same stripe.
func (s *Stripes) For(userID string) *sync.Mutex {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum64()%uint64(len(s.locks))]
}

// Len returns the stripe count.
func (s *Stripes) Len() int { return len(s.locks) }
