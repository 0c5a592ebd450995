package tablegrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellAdmission(t *testing.T) {
	c := NewCell("hello")

	require.True(t, c.TryInsert(1, 5, " world", 3))
	text, owner := c.Snapshot()
	assert.Equal(t, "hello world", text)
	require.NotNil(t, owner)
	assert.Equal(t, uint64(1), *owner)

	// Owner can keep writing.
	require.True(t, c.TryInsert(1, 0, ">>", 3))
	text, _ = c.Snapshot()
	assert.Equal(t, ">>hello world", text)

	// A different client is silently dropped: no mutation, no lock change.
	ok := c.TryInsert(2, 0, "nope", 3)
	assert.False(t, ok)
	text, owner = c.Snapshot()
	assert.Equal(t, ">>hello world", text)
	require.NotNil(t, owner)
	assert.Equal(t, uint64(1), *owner)
}

func TestCellInsertBoundary(t *testing.T) {
	c := NewCell("abc")
	// index == len(text) appends.
	require.True(t, c.TryInsert(1, 3, "d", 3))
	text, _ := c.Snapshot()
	assert.Equal(t, "abcd", text)

	c2 := NewCell("abc")
	// index > len(text) also appends (documented choice).
	require.True(t, c2.TryInsert(1, 999, "d", 3))
	text2, _ := c2.Snapshot()
	assert.Equal(t, "abcd", text2)
}

func TestCellDeleteAndReplace(t *testing.T) {
	c := NewCell("Hello, World!")
	require.True(t, c.TryDelete(5, 5, 12, 3))
	text, _ := c.Snapshot()
	assert.Equal(t, "Hello!", text)

	c2 := NewCell("Hello, World!")
	require.True(t, c2.TryReplace(5, 7, 12, "Go", 3))
	text2, _ := c2.Snapshot()
	assert.Equal(t, "Hello, Go!", text2)
}

func TestCellDeleteReplacePreconditionFailure(t *testing.T) {
	c := NewCell("short")
	// end > len(text): precondition fails, silently dropped, no lock.
	ok := c.TryDelete(7, 0, 999, 3)
	assert.False(t, ok)
	text, owner := c.Snapshot()
	assert.Equal(t, "short", text)
	assert.Nil(t, owner)

	// start > end also fails.
	ok = c.TryReplace(7, 3, 1, "x", 3)
	assert.False(t, ok)
}

func TestCellNoOpEditStillRefreshesLock(t *testing.T) {
	c := NewCell("abc")
	require.True(t, c.TryInsert(9, 0, "", 3)) // establishes the lock
	ok := c.TryDelete(9, 1, 1, 3)             // start == end: no-op text change
	require.True(t, ok)
	text, owner := c.Snapshot()
	assert.Equal(t, "abc", text)
	require.NotNil(t, owner)
	assert.Equal(t, uint64(9), *owner)
}

func TestCellTickReleasesAfterThreeTicks(t *testing.T) {
	c := NewCell("persisted")
	require.True(t, c.TryInsert(3, 0, "", 3)) // RemainingSeconds = 3

	released, _ := c.Tick(2)
	assert.False(t, released)
	released, _ = c.Tick(2)
	assert.False(t, released)
	released, text := c.Tick(2)
	assert.True(t, released)
	assert.Equal(t, "persisted", text)

	_, owner := c.Snapshot()
	assert.Nil(t, owner)
}

func TestCellTickNoLockIsNoOp(t *testing.T) {
	c := NewCell("x")
	released, text := c.Tick(2)
	assert.False(t, released)
	assert.Empty(t, text)
}

func TestCellMultiByteTextByteIndexing(t *testing.T) {
	// "café" is 5 bytes (c=1,a=1,f=1,é=2 in UTF-8). Byte offset 3 falls
	// cleanly between the 'f' and the 'é', so inserting there never
	// splits the multi-byte sequence.
	c := NewCell("café")
	require.True(t, c.TryInsert(1, 3, "!", 3))
	text, _ := c.Snapshot()
	assert.Equal(t, "caf!é", text)
}
