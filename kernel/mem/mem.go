// Package mem defines the memory providers used by kernel subsystems that
// manage their own backing storage, such as the descriptor table.
package mem

import "segkern/kernel"

var (
	// ErrOutOfMemory is returned by allocators that cannot satisfy a request.
	ErrOutOfMemory = &kernel.Error{Module: "mem", Message: "out of memory"}

	// ErrInvalidSize is returned when a zero-sized block is requested.
	ErrInvalidSize = &kernel.Error{Module: "mem", Message: "invalid block size"}
)

// Allocator supplies blocks of zero-filled memory. A block stays at the same
// address until it is passed to FreeBlock.
type Allocator interface {
	// AllocBlock returns a zeroed block of exactly size bytes.
	AllocBlock(size Size) ([]byte, *kernel.Error)

	// FreeBlock returns a block obtained by AllocBlock.
	FreeBlock(block []byte)
}

// HeapAllocator serves blocks from the Go heap. It can only be used once the
// Go allocator has been initialized.
type HeapAllocator struct{}

// AllocBlock implements Allocator.
func (HeapAllocator) AllocBlock(size Size) ([]byte, *kernel.Error) {
	if size == 0 {
		return nil, ErrInvalidSize
	}
	return make([]byte, size), nil
}

// FreeBlock implements Allocator. Heap blocks are reclaimed by the garbage
// collector once unreferenced.
func (HeapAllocator) FreeBlock(_ []byte) {}

// LimitedAllocator wraps another Allocator and fails requests that would take
// the total number of outstanding bytes above Limit. It is not safe for
// concurrent use; callers serialize access.
type LimitedAllocator struct {
	Allocator Allocator
	Limit     Size

	inUse Size
}

// InUse returns the number of bytes currently handed out.
func (a *LimitedAllocator) InUse() Size {
	return a.inUse
}

// AllocBlock implements Allocator.
func (a *LimitedAllocator) AllocBlock(size Size) ([]byte, *kernel.Error) {
	if a.inUse+size > a.Limit {
		return nil, ErrOutOfMemory
	}

	block, err := a.Allocator.AllocBlock(size)
	if err != nil {
		return nil, err
	}

	a.inUse += size
	return block, nil
}

// FreeBlock implements Allocator.
func (a *LimitedAllocator) FreeBlock(block []byte) {
	a.inUse -= Size(len(block))
	a.Allocator.FreeBlock(block)
}
