package task

import "unsafe"

// TSS is the i386 task state segment: the memory block where the CPU saves
// and restores a task's registers on a hardware task switch and where it
// looks up the ring 0-2 stacks on privilege changes.
type TSS struct {
	Link uint16
	_    uint16

	ESP0 uint32
	SS0  uint16
	_    uint16
	ESP1 uint32
	SS1  uint16
	_    uint16
	ESP2 uint32
	SS2  uint16
	_    uint16

	CR3    uint32
	EIP    uint32
	EFlags uint32
	EAX    uint32
	ECX    uint32
	EDX    uint32
	EBX    uint32
	ESP    uint32
	EBP    uint32
	ESI    uint32
	EDI    uint32

	ES uint16
	_  uint16
	CS uint16
	_  uint16
	SS uint16
	_  uint16
	DS uint16
	_  uint16
	FS uint16
	_  uint16
	GS uint16
	_  uint16

	LDT uint16
	_   uint16

	// Trap makes the CPU raise a debug exception when switching to the task.
	Trap      uint16
	IOMapBase uint16
}

// ContextImage is a block of memory that holds a thread's saved execution
// state. It is owned by the thread and must not move while a task-context
// descriptor references it.
type ContextImage interface {
	// Base returns the linear address of the block.
	Base() uintptr

	// Limit returns the size of the block in bytes minus one.
	Limit() uint32
}

type tssImage struct {
	tss *TSS
}

func (img tssImage) Base() uintptr { return uintptr(unsafe.Pointer(img.tss)) }
func (img tssImage) Limit() uint32 { return uint32(unsafe.Sizeof(*img.tss)) - 1 }

// ImageOf returns the ContextImage backed by tss. The caller keeps tss alive
// for as long as the image is registered.
func ImageOf(tss *TSS) ContextImage {
	return tssImage{tss: tss}
}
