package session

import "sync"

// Allocator issues a unique client id to each newly attached connection,
// monotonically increasing from 0 for the life of the process.
type Allocator struct {
	mu   sync.Mutex
	next uint64
}

// Next returns the next client id.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}
