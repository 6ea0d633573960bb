package kmain

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segkern/kernel"
	"segkern/kernel/gdt"
	"segkern/kernel/kfmt"
	"segkern/kernel/mem"
	"segkern/kernel/seg"
)

func TestBootDescriptors(t *testing.T) {
	descs := BootDescriptors()
	require.Len(t, descs, 5)

	assert.Equal(t, seg.Descriptor(0), descs[NullIndex])
	assert.Equal(t, seg.Descriptor(0x00cf9a000000ffff), descs[KernelCodeIndex])
	assert.Equal(t, seg.Descriptor(0x00cf92000000ffff), descs[KernelDataIndex])
	assert.Equal(t, seg.Descriptor(0x00cffa000000ffff), descs[UserCodeIndex])
	assert.Equal(t, seg.Descriptor(0x00cff2000000ffff), descs[UserDataIndex])

	assert.Equal(t, seg.Selector(0x08), KernelCodeSel)
	assert.Equal(t, seg.Selector(0x10), KernelDataSel)
	assert.Equal(t, seg.Selector(0x1b), UserCodeSel)
	assert.Equal(t, seg.Selector(0x23), UserDataSel)
}

// bootRAM hands out heap blocks and remembers the last one.
type bootRAM struct {
	last []byte
}

func (m *bootRAM) AllocBlock(size mem.Size) ([]byte, *kernel.Error) {
	m.last = make([]byte, size)
	return m.last, nil
}

func (m *bootRAM) FreeBlock([]byte) {}

func TestInit(t *testing.T) {
	var (
		gdtr seg.RegionDescriptor
		tr   seg.Selector
		ram  bootRAM
	)

	r, err := Init(Config{
		Allocator:       &ram,
		InitialCapacity: 4,
		LoadFn:          func(rd seg.RegionDescriptor) { gdtr = rd },
		LoadTaskFn:      func(sel seg.Selector) { tr = sel },
	})
	require.Nil(t, err)

	table := r.Table()
	assert.Equal(t, 9, table.Capacity())
	assert.Equal(t, 3, table.FreeCount(), "one slot holds the placeholder context")
	assert.Equal(t, table.Region(), gdtr)

	assert.Equal(t, gdt.Index(5), r.Placeholder().Index, "the placeholder follows the boot segments")
	assert.Equal(t, r.Placeholder().Selector(), tr)

	require.Equal(t, uintptr(unsafe.Pointer(&ram.last[0])), gdtr.Base, "the table lives in the block from the allocator")
	installed := unsafe.Slice((*seg.Descriptor)(unsafe.Pointer(&ram.last[0])), len(ram.last)/8)
	assert.Equal(t, BootDescriptors(), installed[:5])
	assert.True(t, installed[5].Type().IsTSS())

	t.Run("allocator failure", func(t *testing.T) {
		_, err := Init(Config{
			Allocator: &mem.LimitedAllocator{Allocator: mem.HeapAllocator{}, Limit: 8},
			LoadFn:    func(seg.RegionDescriptor) {},
		})
		assert.Equal(t, gdt.ErrResourceExhausted, err)
	})

	t.Run("exact fit", func(t *testing.T) {
		_, err := Init(Config{
			InitialCapacity: 1,
			Allocator:       &mem.LimitedAllocator{Allocator: mem.HeapAllocator{}, Limit: 6 * 8},
			LoadFn:          func(seg.RegionDescriptor) {},
			LoadTaskFn:      func(seg.Selector) {},
		})
		assert.Nil(t, err, "boot segments plus one free slot fit exactly")
	})
}

func TestKmain(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
		Registry = nil
	}()

	var panicErr interface{}
	panicFn = func(e interface{}) {
		panicErr = e
	}

	Kmain()

	assert.Equal(t, errKmainReturned, panicErr)
	require.NotNil(t, Registry)
	assert.Equal(t, Registry.Placeholder(), Registry.Active())
}
