//go:build !unix

// Package mmap provides a mem.Allocator for hosts without mmap support. Blocks
// are served from the Go heap.
package mmap

import (
	"segkern/kernel"
	"segkern/kernel/mem"
)

// Allocator implements mem.Allocator on top of mem.HeapAllocator, rounding
// every block up to whole pages like the mapping-based implementation.
type Allocator struct{}

// AllocBlock implements mem.Allocator.
func (Allocator) AllocBlock(size mem.Size) ([]byte, *kernel.Error) {
	if size == 0 {
		return nil, mem.ErrInvalidSize
	}

	block, err := mem.HeapAllocator{}.AllocBlock(mem.Size(size.Pages() << mem.PageShift))
	if err != nil {
		return nil, err
	}
	return block[:size], nil
}

// FreeBlock implements mem.Allocator.
func (Allocator) FreeBlock(_ []byte) {}
