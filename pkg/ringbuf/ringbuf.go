// Package ringbuf provides a fixed-capacity circular store of log lines.
package ringbuf

import "sync"

// Buffer is a thread-safe circular buffer with O(1) append and O(N) snapshot.
// One writer (the read loop) and any number of readers may use it concurrently.
type Buffer struct {
	entries []string
	head    int  // next write position
	size    int  // current number of entries
	full    bool // whether the buffer has wrapped around
	mu      sync.RWMutex
}

// New returns a buffer holding at most capacity lines.
// A capacity below 1 is raised to 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{entries: make([]string, capacity)}
}

// Add inserts one line, overwriting the oldest entry once the buffer is full.
//
// Complexity: O(1) time, O(1) space
func (b *Buffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capN := len(b.entries)

	b.entries[b.head] = line
	b.head = (b.head + 1) % capN

	if b.full {
		// Size stays at capN, we're overwriting
		return
	}
	b.size++
	if b.size == capN {
		b.full = true
	}
}

// Snapshot returns the currently held lines oldest → newest, independent of
// the physical wrap position. Returns a NEW slice (caller owns memory).
//
// Complexity: O(N) time where N = current size
func (b *Buffer) Snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}

	capN := len(b.entries)

	// Oldest entry: next overwrite position when wrapped, index 0 otherwise.
	oldest := 0
	if b.full {
		oldest = b.head
	}

	result := make([]string, b.size)
	for i := 0; i < b.size; i++ {
		result[i] = b.entries[(oldest+i)%capN]
	}
	return result
}

// Len returns the current number of entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}
