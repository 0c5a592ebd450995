// Package tablegrid implements the per-cell edit/lock state machine and
// the grid that holds a table session's cells.
package tablegrid

import "sync"

// Lock is a soft, time-limited claim by a client on a cell's writer role.
type Lock struct {
	OwnerID          uint64
	RemainingSeconds uint32
}

// Cell is the smallest unit of the grid: text plus an optional lock
// record. Every mutation happens with c.mu held, so a Cell is its own
// critical section independent of the grid's shape.
//
// Indexing into text is by byte position within the UTF-8 encoding,
// matching the wire contract — callers pass byte offsets, not rune
// offsets.
type Cell struct {
	mu   sync.Mutex
	text string
	lock *Lock
}

// NewCell creates a cell with the given initial text and no lock.
func NewCell(text string) *Cell {
	return &Cell{text: text}
}

// SetText overwrites a cell's text without touching its lock. Used only
// during session materialization, before the cell is reachable by any
// other goroutine.
func (c *Cell) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Snapshot returns the cell's current text and lock owner (nil if
// unlocked), for building an Init view.
func (c *Cell) Snapshot() (text string, ownerID *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return c.text, nil
	}
	owner := c.lock.OwnerID
	return c.text, &owner
}

// admitted reports whether clientID may write to the cell: the lock is
// absent, or already owned by clientID. Caller must hold c.mu.
func (c *Cell) admitted(clientID uint64) bool {
	return c.lock == nil || c.lock.OwnerID == clientID
}

// refreshLock acquires or refreshes the lock for clientID. Caller must
// hold c.mu.
func (c *Cell) refreshLock(clientID uint64, seconds uint32) {
	c.lock = &Lock{OwnerID: clientID, RemainingSeconds: seconds}
}

// TryInsert applies Insert(index, s) if clientID is admitted. index >=
// len(text) appends; otherwise s is inserted at the byte position index.
// Returns false (no mutation, no lock change) if clientID is not
// admitted.
func (c *Cell) TryInsert(clientID uint64, index int, s string, lockSeconds uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admitted(clientID) {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index >= len(c.text) {
		c.text += s
	} else {
		c.text = c.text[:index] + s + c.text[index:]
	}
	c.refreshLock(clientID, lockSeconds)
	return true
}

// TryDelete applies Delete(start, end) if clientID is admitted and
// start <= end <= len(text). On precondition failure it returns false
// without acquiring/refreshing the lock.
func (c *Cell) TryDelete(clientID uint64, start, end int, lockSeconds uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admitted(clientID) {
		return false
	}
	if start < 0 || start > end || end > len(c.text) {
		return false
	}
	c.text = c.text[:start] + c.text[end:]
	c.refreshLock(clientID, lockSeconds)
	return true
}

// TryReplace applies Replace(start, end, s) under the same admission and
// precondition rules as TryDelete.
func (c *Cell) TryReplace(clientID uint64, start, end int, s string, lockSeconds uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admitted(clientID) {
		return false
	}
	if start < 0 || start > end || end > len(c.text) {
		return false
	}
	c.text = c.text[:start] + s + c.text[end:]
	c.refreshLock(clientID, lockSeconds)
	return true
}

// Tick advances the cell's lock timer by one sweep step. If the lock is
// absent, it is a no-op. If remaining seconds is already
// below releaseBelow, the lock is cleared and released is true, with
// text returned for writeback; otherwise remaining seconds is
// decremented and released is false.
func (c *Cell) Tick(releaseBelow uint32) (released bool, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return false, ""
	}
	if c.lock.RemainingSeconds < releaseBelow {
		text = c.text
		c.lock = nil
		return true, text
	}
	c.lock.RemainingSeconds--
	return false, ""
}
