package manager

import "sync"

// SlotAllocator tracks the connection slot budget of one scanner source.
// Radios and proxies can only sustain a fixed number of simultaneous
// connections; callers must allocate a slot before dialing and release it
// when the connection ends.
type SlotAllocator struct {
	mu        sync.Mutex
	total     int
	allocated map[string]struct{}
}

// NewSlotAllocator creates an allocator with the given budget. A budget of
// zero or less means connections are never allowed through this source.
func NewSlotAllocator(total int) *SlotAllocator {
	return &SlotAllocator{
		total:     total,
		allocated: make(map[string]struct{}),
	}
}

// Allocate reserves a slot for the address. It reports false when the budget
// is exhausted. Allocating again for an address that already holds a slot
// succeeds without consuming another one.
func (a *SlotAllocator) Allocate(address string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, held := a.allocated[address]; held {
		return true
	}
	if len(a.allocated) >= a.total {
		return false
	}
	a.allocated[address] = struct{}{}
	return true
}

// Release frees the slot held by the address, if any.
func (a *SlotAllocator) Release(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, address)
}

// Free returns the number of slots currently available.
func (a *SlotAllocator) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	free := a.total - len(a.allocated)
	if free < 0 {
		return 0
	}
	return free
}

// Total returns the configured budget.
func (a *SlotAllocator) Total() int {
	return a.total
}
