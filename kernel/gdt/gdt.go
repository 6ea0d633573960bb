// Package gdt manages the global descriptor table: a growable array of 8-byte
// descriptors that the CPU reads by index on every segment load and task
// switch.
//
// Descriptors are handed out and returned by index. The backing storage may
// move when the table grows, so callers never hold pointers into it; they
// read copies with Get and modify entries in place with Update.
package gdt

import (
	"io"
	"unsafe"

	"segkern/kernel"
	"segkern/kernel/cpu"
	"segkern/kernel/kfmt"
	"segkern/kernel/mem"
	"segkern/kernel/seg"
	"segkern/kernel/sync"
)

const (
	// DefaultGrowBy is the number of descriptors appended to a full table
	// when no other value is configured.
	DefaultGrowBy = 8

	// MaxEntries is the number of descriptors addressable by a selector.
	MaxEntries = seg.MaxIndex + 1

	descriptorSize = mem.Size(unsafe.Sizeof(seg.Descriptor(0)))
)

var (
	// ErrResourceExhausted is returned when the table is full and cannot
	// obtain memory for more descriptors.
	ErrResourceExhausted = &kernel.Error{Module: "gdt", Message: "descriptor table growth failed"}

	// ErrOutOfRange is returned for indices beyond the table capacity.
	ErrOutOfRange = &kernel.Error{Module: "gdt", Message: "descriptor index out of range"}

	// ErrNotPresent is returned when accessing or freeing a free descriptor.
	ErrNotPresent = &kernel.Error{Module: "gdt", Message: "descriptor not present"}

	// ErrReserved is returned when freeing one of the fixed descriptors
	// installed when the table was created.
	ErrReserved = &kernel.Error{Module: "gdt", Message: "descriptor is reserved"}

	// ErrPresentCleared is returned by Update when the callback clears the
	// present bit; descriptors are released through Free.
	ErrPresentCleared = &kernel.Error{Module: "gdt", Message: "update cleared the present bit"}

	// ErrInternalInconsistency is raised when the free descriptor count
	// disagrees with the table contents. The table can no longer be trusted
	// so the kernel panics.
	ErrInternalInconsistency = &kernel.Error{Module: "gdt", Message: "free descriptor count does not match table contents"}

	errInvalidConfig = &kernel.Error{Module: "gdt", Message: "invalid table configuration"}

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic
)

// Index identifies a descriptor slot. An index stays valid until the slot is
// freed; growth never renumbers slots.
type Index uint16

// Config describes the initial layout of a Table.
type Config struct {
	// Reserved descriptors are installed at indices 0..len(Reserved)-1 and
	// never take part in allocation. Entry 0 must be the null descriptor;
	// when Reserved is empty a single null descriptor is reserved.
	Reserved []seg.Descriptor

	// InitialCapacity is the number of allocatable slots created up front.
	// Defaults to GrowBy.
	InitialCapacity int

	// GrowBy is the number of slots appended when the table is full.
	// Defaults to DefaultGrowBy.
	GrowBy int

	// Allocator supplies the table storage. Defaults to mem.HeapAllocator.
	Allocator mem.Allocator

	// LoadFn installs a new table base and limit. It is invoked every time
	// the storage moves. Defaults to loading GDTR.
	LoadFn func(seg.RegionDescriptor)
}

// Table is a growable descriptor table. All operations are serialized by a
// single spinlock that is never held across a blocking call.
type Table struct {
	lock sync.Spinlock

	block   []byte
	entries []seg.Descriptor

	// reserved is the number of fixed leading slots.
	reserved int

	// freeCount tracks the number of non-present allocatable slots.
	freeCount int

	// nextFreeHint is where the next free slot search starts. It only
	// affects performance.
	nextFreeHint int

	growBy int
	alloc  mem.Allocator
	loadFn func(seg.RegionDescriptor)

	// log collects messages while the lock is held.
	log deferredLog
}

// New creates a table with the reserved descriptors followed by
// cfg.InitialCapacity free slots and installs it.
func New(cfg Config) (*Table, *kernel.Error) {
	if cfg.GrowBy <= 0 {
		cfg.GrowBy = DefaultGrowBy
	}
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = cfg.GrowBy
	}
	if cfg.Allocator == nil {
		cfg.Allocator = mem.HeapAllocator{}
	}
	if cfg.LoadFn == nil {
		cfg.LoadFn = loadGDT
	}

	// The CPU treats selector 0 as the null selector, so slot 0 is never
	// handed out.
	if len(cfg.Reserved) == 0 {
		cfg.Reserved = []seg.Descriptor{0}
	}

	capacity := len(cfg.Reserved) + cfg.InitialCapacity
	if capacity > MaxEntries || cfg.Reserved[0].Present() {
		return nil, errInvalidConfig
	}

	// The reserved descriptors seed the table so that they are in place
	// before the first LoadFn call.
	t := &Table{
		entries:      cfg.Reserved,
		reserved:     len(cfg.Reserved),
		nextFreeHint: len(cfg.Reserved),
		growBy:       cfg.GrowBy,
		alloc:        cfg.Allocator,
		loadFn:       cfg.LoadFn,
	}

	err := t.resize(capacity)
	t.takeLog().flush()
	if err != nil {
		return nil, err
	}

	kfmt.Printf("[gdt] table ready: %d reserved, %d free descriptors\n", t.reserved, t.freeCount)
	return t, nil
}

func loadGDT(rd seg.RegionDescriptor) {
	cpu.LoadGDT(rd.Base, rd.Limit)
}

// Tx exposes the table operations to code running inside Locked. Tx values
// must not be retained after the callback returns.
type Tx struct {
	t *Table
}

// Locked runs fn while holding the table lock, allowing callers to combine
// several table operations with their own state changes in a single critical
// section. fn must not block or call back into the Table's own methods.
func (t *Table) Locked(fn func(tx Tx) *kernel.Error) *kernel.Error {
	t.lock.Acquire()
	err := fn(Tx{t: t})
	pending := t.takeLog()
	t.lock.Release()

	pending.flush()
	return err
}

// Allocate reserves a free descriptor slot, growing the table if needed. The
// returned slot is zeroed apart from its present bit.
func (t *Table) Allocate() (Index, *kernel.Error) {
	var index Index
	err := t.Locked(func(tx Tx) *kernel.Error {
		var err *kernel.Error
		index, err = tx.Allocate()
		return err
	})
	return index, err
}

// Free returns a slot to the free pool. The caller must ensure that the CPU
// no longer references the descriptor.
func (t *Table) Free(index Index) *kernel.Error {
	return t.Locked(func(tx Tx) *kernel.Error { return tx.Free(index) })
}

// Get returns a copy of the present descriptor at index.
func (t *Table) Get(index Index) (seg.Descriptor, *kernel.Error) {
	var d seg.Descriptor
	err := t.Locked(func(tx Tx) *kernel.Error {
		var err *kernel.Error
		d, err = tx.Get(index)
		return err
	})
	return d, err
}

// Update applies fn to the present descriptor at index.
func (t *Table) Update(index Index, fn func(*seg.Descriptor)) *kernel.Error {
	return t.Locked(func(tx Tx) *kernel.Error { return tx.Update(index, fn) })
}

// FreeCount returns the number of free allocatable slots.
func (t *Table) FreeCount() int {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.freeCount
}

// Capacity returns the total number of slots, reserved ones included.
func (t *Table) Capacity() int {
	t.lock.Acquire()
	defer t.lock.Release()
	return len(t.entries)
}

// Region returns the base and limit of the table storage as loaded into the
// CPU.
func (t *Table) Region() seg.RegionDescriptor {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.region()
}

// Dump writes a line for each present descriptor to w. The table is copied
// under the lock and written out after the lock is released.
func (t *Table) Dump(w io.Writer) {
	t.lock.Acquire()
	entries := append([]seg.Descriptor(nil), t.entries...)
	freeCount := t.freeCount
	t.lock.Release()

	kfmt.Fprintf(w, "gdt: %d slots, %d free\n", len(entries), freeCount)
	for i, d := range entries {
		if !d.Present() {
			continue
		}
		kfmt.Fprintf(w, "%4d sel=%4x %11s dpl=%d base=%8x limit=%5x\n",
			i, uint16(seg.GlobalSelector(uint16(i), d.DPL())), d.Type().String(), uint8(d.DPL()), d.Base(), d.Limit())
	}
}

// Allocate behaves like Table.Allocate.
func (tx Tx) Allocate() (Index, *kernel.Error) {
	t := tx.t
	if t.freeCount == 0 {
		if err := t.grow(); err != nil {
			return 0, err
		}
	}

	// Search from the hint to the end, then once more from the first
	// allocatable slot.
	for pass := 0; pass < 2; pass++ {
		for i := t.nextFreeHint; i < len(t.entries); i++ {
			if t.entries[i].Present() {
				continue
			}

			t.entries[i] = 0
			t.entries[i].SetPresent(true)
			t.freeCount--
			t.nextFreeHint = i + 1
			return Index(i), nil
		}

		t.nextFreeHint = t.reserved
	}

	// The kernel halts below, so this one is printed right away.
	kfmt.Printf("[gdt] free count is %d but no free descriptor exists in %d slots\n", t.freeCount, len(t.entries))
	panicFn(ErrInternalInconsistency)
	return 0, ErrInternalInconsistency
}

// Free behaves like Table.Free.
func (tx Tx) Free(index Index) *kernel.Error {
	t := tx.t
	i := int(index)
	switch {
	case i >= len(t.entries):
		return ErrOutOfRange
	case i < t.reserved:
		return ErrReserved
	case !t.entries[i].Present():
		return ErrNotPresent
	}

	// A non-present descriptor raises a fault if the CPU tries to use it.
	t.entries[i].SetPresent(false)
	t.freeCount++
	if i < t.nextFreeHint {
		t.nextFreeHint = i
	}
	return nil
}

// Get behaves like Table.Get.
func (tx Tx) Get(index Index) (seg.Descriptor, *kernel.Error) {
	d, err := tx.t.lookup(index)
	if err != nil {
		return 0, err
	}
	return *d, nil
}

// Update behaves like Table.Update. The descriptor is written back only if fn
// leaves it present.
func (tx Tx) Update(index Index, fn func(*seg.Descriptor)) *kernel.Error {
	d, err := tx.t.lookup(index)
	if err != nil {
		return err
	}

	updated := *d
	fn(&updated)
	if !updated.Present() {
		return ErrPresentCleared
	}

	*d = updated
	return nil
}

func (t *Table) lookup(index Index) (*seg.Descriptor, *kernel.Error) {
	i := int(index)
	switch {
	case i >= len(t.entries):
		return nil, ErrOutOfRange
	case !t.entries[i].Present():
		return nil, ErrNotPresent
	}
	return &t.entries[i], nil
}

// grow appends growBy free slots to the table, capped at MaxEntries.
func (t *Table) grow() *kernel.Error {
	capacity := len(t.entries) + t.growBy
	if capacity > MaxEntries {
		capacity = MaxEntries
	}

	if capacity == len(t.entries) {
		t.log.printf("[gdt] table is at its maximum size of %d descriptors\n", MaxEntries)
		return ErrResourceExhausted
	}

	if err := t.resize(capacity); err != nil {
		return err
	}

	t.log.printf("[gdt] grew table to %d descriptors\n", capacity)
	return nil
}

// resize moves the table into a new block that holds capacity descriptors.
// Existing descriptors keep their index. The new location is installed
// before the old block is released. On failure the table is left unchanged.
func (t *Table) resize(capacity int) *kernel.Error {
	size := mem.Size(capacity) * descriptorSize
	block, err := t.alloc.AllocBlock(size)
	if err != nil {
		t.log.printf("[gdt] unable to obtain %d bytes for %d descriptors: %s\n", uint64(size), capacity, err.Message)
		return ErrResourceExhausted
	}

	if mem.Size(len(block)) < size {
		t.alloc.FreeBlock(block)
		t.log.printf("[gdt] allocator returned %d bytes; need %d\n", len(block), uint64(size))
		return ErrResourceExhausted
	}

	oldSize := mem.Size(len(t.entries)) * descriptorSize
	mem.Memset(block[oldSize:size], 0)

	entries := unsafe.Slice((*seg.Descriptor)(unsafe.Pointer(&block[0])), capacity)
	copy(entries, t.entries)

	oldBlock := t.block
	t.freeCount += capacity - len(t.entries)
	t.block, t.entries = block, entries
	t.loadFn(t.region())

	if oldBlock != nil {
		t.alloc.FreeBlock(oldBlock)
	}
	return nil
}

func (t *Table) region() seg.RegionDescriptor {
	return seg.RegionDescriptor{
		Base:  uintptr(unsafe.Pointer(&t.entries[0])),
		Limit: uint16(mem.Size(len(t.entries))*descriptorSize - 1),
	}
}
