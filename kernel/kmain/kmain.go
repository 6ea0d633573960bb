package kmain

import (
	"segkern/kernel"
	"segkern/kernel/gdt"
	"segkern/kernel/kfmt"
	"segkern/kernel/mem"
	"segkern/kernel/seg"
	"segkern/kernel/task"
)

// Indices of the descriptors installed at boot.
const (
	NullIndex = iota
	KernelCodeIndex
	KernelDataIndex
	UserCodeIndex
	UserDataIndex

	bootDescriptors
)

// Selectors for the boot segments.
var (
	KernelCodeSel = seg.GlobalSelector(KernelCodeIndex, seg.KernelPL)
	KernelDataSel = seg.GlobalSelector(KernelDataIndex, seg.KernelPL)
	UserCodeSel   = seg.GlobalSelector(UserCodeIndex, seg.UserPL)
	UserDataSel   = seg.GlobalSelector(UserDataIndex, seg.UserPL)
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	// Registry tracks the task contexts of all threads. It is set up by
	// Init.
	Registry *task.Registry
)

// Config overrides the defaults used by Init.
type Config struct {
	// Allocator supplies the descriptor table storage.
	Allocator mem.Allocator

	// InitialCapacity and GrowBy size the allocatable part of the table.
	InitialCapacity int
	GrowBy          int

	// LoadFn and LoadTaskFn replace the GDTR and TR loaders.
	LoadFn     func(seg.RegionDescriptor)
	LoadTaskFn func(seg.Selector)
}

// BootDescriptors returns the fixed GDT entries: the null descriptor followed
// by flat 4G code and data segments for the kernel and for user mode.
func BootDescriptors() []seg.Descriptor {
	flat := func(t seg.Type, pl seg.PrivilegeLevel) seg.Descriptor {
		return seg.SoftDescriptor{
			Limit:   seg.MaxByteLimit,
			Type:    t,
			DPL:     pl,
			Present: true,
			Def32:   true,
			Gran:    true,
		}.Pack()
	}

	descs := make([]seg.Descriptor, bootDescriptors)
	descs[KernelCodeIndex] = flat(seg.MemER, seg.KernelPL)
	descs[KernelDataIndex] = flat(seg.MemRW, seg.KernelPL)
	descs[UserCodeIndex] = flat(seg.MemER, seg.UserPL)
	descs[UserDataIndex] = flat(seg.MemRW, seg.UserPL)
	return descs
}

// Init builds the descriptor table with the boot segments, installs it and
// creates the task-context registry. The registry's placeholder context
// becomes the active task.
func Init(cfg Config) (*task.Registry, *kernel.Error) {
	table, err := gdt.New(gdt.Config{
		Reserved:        BootDescriptors(),
		InitialCapacity: cfg.InitialCapacity,
		GrowBy:          cfg.GrowBy,
		Allocator:       cfg.Allocator,
		LoadFn:          cfg.LoadFn,
	})
	if err != nil {
		return nil, err
	}

	return task.New(task.Config{Table: table, LoadTaskFn: cfg.LoadTaskFn})
}

// Kmain is the kernel entrypoint invoked once the Go runtime is available.
//
// Kmain is not expected to return. If it does, the kernel panics.
//
//go:noinline
func Kmain() {
	var err *kernel.Error
	if Registry, err = Init(Config{Allocator: mem.HeapAllocator{}}); err != nil {
		panicFn(err)
		return
	}

	panicFn(errKmainReturned)
}
