// Package task hands out task-context descriptors to threads. Each live
// thread owns one TSS descriptor in the GDT that points at its saved context.
//
// The registry tracks which descriptor the CPU is currently running under.
// That descriptor is never freed: releasing it first moves the CPU onto a
// permanently allocated placeholder context.
package task

import (
	"sync/atomic"

	"segkern/kernel"
	"segkern/kernel/cpu"
	"segkern/kernel/gdt"
	"segkern/kernel/kfmt"
	"segkern/kernel/seg"
)

var (
	// ErrInvalidOperation is returned when releasing the placeholder
	// context, releasing a handle twice or activating a slot that does not
	// hold a task context.
	ErrInvalidOperation = &kernel.Error{Module: "task", Message: "invalid task context operation"}

	// ErrInvalidImage is returned by Acquire for a missing context image or
	// one too large for a byte-granular descriptor.
	ErrInvalidImage = &kernel.Error{Module: "task", Message: "invalid context image"}

	errMissingTable = &kernel.Error{Module: "task", Message: "no descriptor table configured"}
)

// Handle identifies the task-context descriptor owned by a thread.
type Handle struct {
	Index     gdt.Index
	Privilege seg.PrivilegeLevel
}

// Selector returns the GDT selector that the CPU uses to reference the
// descriptor.
func (h Handle) Selector() seg.Selector {
	return seg.GlobalSelector(uint16(h.Index), h.Privilege)
}

// Config describes a Registry.
type Config struct {
	// Table provides the descriptor slots.
	Table *gdt.Table

	// LoadTaskFn makes the CPU run under the given task selector. Defaults
	// to loading the task register.
	LoadTaskFn func(seg.Selector)
}

// Registry allocates and releases task-context descriptors. It shares the
// table's lock so that changes to the active context are ordered with slot
// allocation and release.
type Registry struct {
	table      *gdt.Table
	loadTaskFn func(seg.Selector)

	// placeholderTSS backs the placeholder context.
	placeholderTSS TSS
	placeholder    Handle

	// active is the context the CPU is running under.
	active Handle

	// baseWarned is set once a truncated context base has been reported.
	baseWarned atomic.Bool
}

// New creates a registry, allocates its placeholder context and makes it the
// active one.
func New(cfg Config) (*Registry, *kernel.Error) {
	if cfg.Table == nil {
		return nil, errMissingTable
	}
	if cfg.LoadTaskFn == nil {
		cfg.LoadTaskFn = loadTaskRegister
	}

	r := &Registry{
		table:      cfg.Table,
		loadTaskFn: cfg.LoadTaskFn,
	}

	err := r.table.Locked(func(tx gdt.Tx) *kernel.Error {
		h, err := r.acquire(tx, ImageOf(&r.placeholderTSS))
		if err != nil {
			return err
		}

		r.placeholder = h
		return r.switchTo(tx, h)
	})
	if err != nil {
		return nil, err
	}

	kfmt.Printf("[task] placeholder context at selector %4x\n", uint16(r.placeholder.Selector()))
	r.warnTruncatedBase(ImageOf(&r.placeholderTSS))
	return r, nil
}

func loadTaskRegister(sel seg.Selector) {
	cpu.LoadTaskRegister(uint16(sel))
}

// Acquire allocates a task-context descriptor that references img. The
// returned handle belongs to the caller until it is passed to Release.
func (r *Registry) Acquire(img ContextImage) (Handle, *kernel.Error) {
	if img == nil || img.Limit() > seg.MaxByteLimit {
		return Handle{}, ErrInvalidImage
	}

	var h Handle
	err := r.table.Locked(func(tx gdt.Tx) *kernel.Error {
		var err *kernel.Error
		h, err = r.acquire(tx, img)
		return err
	})
	if err == nil {
		r.warnTruncatedBase(img)
	}
	return h, err
}

// warnTruncatedBase reports, once per registry, a context image that lies
// above 4G. Its descriptor only holds the low 32 bits of the address, which
// happens when the registry runs hosted on a 64-bit machine.
func (r *Registry) warnTruncatedBase(img ContextImage) {
	base := uint64(img.Base())
	if base <= 0xffffffff || !r.baseWarned.CompareAndSwap(false, true) {
		return
	}

	kfmt.Printf("[task] context image at %x is above 4G; descriptor base truncated to %8x\n", base, uint32(base))
}

func (r *Registry) acquire(tx gdt.Tx, img ContextImage) (Handle, *kernel.Error) {
	index, err := tx.Allocate()
	if err != nil {
		return Handle{}, err
	}

	// Descriptors hold 32-bit linear addresses; see warnTruncatedBase.
	err = tx.Update(index, func(d *seg.Descriptor) {
		d.SetBase(uint32(img.Base()))
		d.SetLimit(img.Limit())
		d.SetType(seg.Sys386TSS)
		d.SetDPL(seg.KernelPL)
	})
	if err != nil {
		return Handle{}, err
	}

	return Handle{Index: index, Privilege: seg.KernelPL}, nil
}

// Release frees the descriptor owned by h. If h is the active context, the
// CPU is moved onto the placeholder context before the slot is freed. h must
// not be used after Release returns.
func (r *Registry) Release(h Handle) *kernel.Error {
	return r.table.Locked(func(tx gdt.Tx) *kernel.Error {
		if h.Index == r.placeholder.Index {
			return ErrInvalidOperation
		}

		if err := r.checkTaskContext(tx, h); err != nil {
			return err
		}

		if h.Index == r.active.Index {
			if err := r.switchTo(tx, r.placeholder); err != nil {
				return err
			}
		}

		return tx.Free(h.Index)
	})
}

// SetActive makes h the context the CPU runs under. It is called by the
// scheduler right before switching to the thread that owns h.
func (r *Registry) SetActive(h Handle) *kernel.Error {
	return r.table.Locked(func(tx gdt.Tx) *kernel.Error {
		if err := r.checkTaskContext(tx, h); err != nil {
			return err
		}
		return r.switchTo(tx, h)
	})
}

// Active returns the handle of the context the CPU is running under.
func (r *Registry) Active() Handle {
	var h Handle
	r.table.Locked(func(gdt.Tx) *kernel.Error {
		h = r.active
		return nil
	})
	return h
}

// Placeholder returns the handle of the placeholder context.
func (r *Registry) Placeholder() Handle {
	return r.placeholder
}

// Table returns the descriptor table used by the registry.
func (r *Registry) Table() *gdt.Table {
	return r.table
}

// FreeCount returns the number of descriptors that can be acquired without
// growing the table.
func (r *Registry) FreeCount() int {
	return r.table.FreeCount()
}

// Capacity returns the current number of table slots, reserved ones included.
func (r *Registry) Capacity() int {
	return r.table.Capacity()
}

// checkTaskContext verifies that h references a present TSS descriptor.
func (r *Registry) checkTaskContext(tx gdt.Tx, h Handle) *kernel.Error {
	d, err := tx.Get(h.Index)
	switch {
	case err == gdt.ErrNotPresent:
		return ErrInvalidOperation
	case err != nil:
		return err
	case !d.Type().IsTSS():
		return ErrInvalidOperation
	}
	return nil
}

// switchTo loads h into the task register and records it as active. The CPU
// refuses to load a TSS marked busy, so the descriptor is marked available
// first; the CPU sets the busy type again while loading it.
func (r *Registry) switchTo(tx gdt.Tx, h Handle) *kernel.Error {
	err := tx.Update(h.Index, func(d *seg.Descriptor) {
		d.SetType(seg.Sys386TSS)
	})
	if err != nil {
		return err
	}

	r.active = h
	r.loadTaskFn(h.Selector())
	return nil
}
