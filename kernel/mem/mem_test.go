package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizePages(t *testing.T) {
	specs := []struct {
		size Size
		exp  uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{Mb, 256},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, spec.size.Pages(), "size %d", spec.size)
	}
}

func TestHeapAllocator(t *testing.T) {
	var alloc HeapAllocator

	block, err := alloc.AllocBlock(64)
	require.Nil(t, err)
	require.Len(t, block, 64)
	for i, b := range block {
		require.Zero(t, b, "byte %d not zeroed", i)
	}
	alloc.FreeBlock(block)

	_, err = alloc.AllocBlock(0)
	assert.Equal(t, ErrInvalidSize, err)
}

func TestLimitedAllocator(t *testing.T) {
	alloc := &LimitedAllocator{Allocator: HeapAllocator{}, Limit: 128}

	first, err := alloc.AllocBlock(64)
	require.Nil(t, err)
	assert.Equal(t, Size(64), alloc.InUse())

	second, err := alloc.AllocBlock(64)
	require.Nil(t, err)
	assert.Equal(t, Size(128), alloc.InUse())

	_, err = alloc.AllocBlock(1)
	assert.Equal(t, ErrOutOfMemory, err)
	assert.Equal(t, Size(128), alloc.InUse(), "failed allocations do not count")

	alloc.FreeBlock(first)
	assert.Equal(t, Size(64), alloc.InUse())

	_, err = alloc.AllocBlock(64)
	assert.Nil(t, err)

	alloc.FreeBlock(second)

	t.Run("inner allocator error", func(t *testing.T) {
		alloc := &LimitedAllocator{Allocator: HeapAllocator{}, Limit: 128}
		_, err := alloc.AllocBlock(0)
		assert.Equal(t, ErrInvalidSize, err)
		assert.Zero(t, alloc.InUse())
	})
}
