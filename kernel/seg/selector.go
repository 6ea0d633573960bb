// Package seg describes the i386 segmentation structures: selectors, memory
// and system segment descriptors, gate descriptors and the region descriptor
// loaded into GDTR.
package seg

// PrivilegeLevel is a ring number between 0 (most privileged) and 3.
type PrivilegeLevel uint8

const (
	// KernelPL is the privilege level of kernel code and data.
	KernelPL = PrivilegeLevel(0)

	// UserPL is the privilege level of user code and data.
	UserPL = PrivilegeLevel(3)
)

// Selector references a descriptor by table, index and requested privilege
// level. Bits 0-1 hold the RPL, bit 2 selects the LDT and bits 3-15 hold
// the descriptor index.
type Selector uint16

const (
	selRPLMask  = 0x3
	selLDT      = 0x4
	selIndexShf = 3

	// MaxIndex is the largest descriptor index a selector can encode.
	MaxIndex = 0x1fff
)

// GlobalSelector returns a selector for the GDT entry at index.
func GlobalSelector(index uint16, rpl PrivilegeLevel) Selector {
	return Selector(index<<selIndexShf | uint16(rpl)&selRPLMask)
}

// LocalSelector returns a selector for the LDT entry at index.
func LocalSelector(index uint16, rpl PrivilegeLevel) Selector {
	return GlobalSelector(index, rpl) | selLDT
}

// Index returns the descriptor index encoded in the selector.
func (s Selector) Index() uint16 {
	return uint16(s>>selIndexShf) & MaxIndex
}

// RPL returns the requested privilege level encoded in the selector.
func (s Selector) RPL() PrivilegeLevel {
	return PrivilegeLevel(s & selRPLMask)
}

// IsLocal returns true if the selector references the LDT.
func (s Selector) IsLocal() bool {
	return s&selLDT != 0
}
