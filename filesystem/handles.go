package filesystem

import "sync/atomic"

// HandleAllocator hands out opaque, strictly increasing handle values.
// Values are never reused, even after the file they were issued for is
// removed. The engine keeps no state per handle.
type HandleAllocator struct {
	last atomic.Uint64 // Last handle issued; 0 means none yet
}

// Next returns a new handle value, starting at 1
func (h *HandleAllocator) Next() uint64 {
	return h.last.Add(1)
}

// Last returns the most recently issued handle, or 0
func (h *HandleAllocator) Last() uint64 {
	return h.last.Load()
}
