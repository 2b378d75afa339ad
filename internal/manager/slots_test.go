package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotAllocator_Budget(t *testing.T) {
	a := NewSlotAllocator(2)

	assert.Equal(t, 2, a.Total())
	assert.Equal(t, 2, a.Free())

	assert.True(t, a.Allocate("AA"))
	assert.True(t, a.Allocate("BB"))
	assert.Equal(t, 0, a.Free())

	assert.False(t, a.Allocate("CC"), "allocation MUST fail when the budget is exhausted")

	a.Release("AA")
	assert.Equal(t, 1, a.Free())
	assert.True(t, a.Allocate("CC"))
}

func TestSlotAllocator_AllocateIsIdempotentPerAddress(t *testing.T) {
	a := NewSlotAllocator(1)

	assert.True(t, a.Allocate("AA"))
	assert.True(t, a.Allocate("AA"), "re-allocating a held slot MUST succeed")
	assert.Equal(t, 0, a.Free(), "re-allocation MUST NOT consume a second slot")
}

func TestSlotAllocator_ZeroBudget(t *testing.T) {
	a := NewSlotAllocator(0)

	assert.False(t, a.Allocate("AA"))
	assert.Equal(t, 0, a.Free())

	// Releasing an address that never held a slot is a no-op.
	a.Release("AA")
	assert.Equal(t, 0, a.Free())
}
