package seg

// Type is the 5-bit descriptor type field. Values below 16 describe system
// segments and gates; values from 16 onwards describe memory segments.
type Type uint8

// System segment and gate types.
const (
	SysNull       = Type(0)
	Sys286TSS     = Type(1)
	SysLDT        = Type(2)
	Sys286BusyTSS = Type(3)
	Sys286CallGt  = Type(4)
	SysTaskGate   = Type(5)
	Sys286IntGate = Type(6)
	Sys286TrapGt  = Type(7)
	SysNull2      = Type(8)
	Sys386TSS     = Type(9)
	SysNull3      = Type(10)
	Sys386BusyTSS = Type(11)
	Sys386CallGt  = Type(12)
	SysNull4      = Type(13)
	Sys386IntGate = Type(14)
	Sys386TrapGt  = Type(15)
)

// Memory segment types.
const (
	MemRO    = Type(16) // read only
	MemROA   = Type(17) // read only, accessed
	MemRW    = Type(18) // read write
	MemRWA   = Type(19) // read write, accessed
	MemROD   = Type(20) // read only, expand down
	MemRODA  = Type(21) // read only, expand down, accessed
	MemRWD   = Type(22) // read write, expand down
	MemRWDA  = Type(23) // read write, expand down, accessed
	MemE     = Type(24) // execute only
	MemEA    = Type(25) // execute only, accessed
	MemER    = Type(26) // execute read
	MemERA   = Type(27) // execute read, accessed
	MemEC    = Type(28) // execute only, conforming
	MemEAC   = Type(29) // execute only, accessed, conforming
	MemERC   = Type(30) // execute read, conforming
	MemERAC  = Type(31) // execute read, accessed, conforming
	typeMask = 0x1f
)

var typeNames = [...]string{
	"null", "tss286", "ldt", "tss286busy", "callgate286", "taskgate", "intgate286", "trapgate286",
	"null2", "tss386", "null3", "tss386busy", "callgate386", "null4", "intgate386", "trapgate386",
	"ro", "roa", "rw", "rwa", "rod", "roda", "rwd", "rwda",
	"e", "ea", "er", "era", "ec", "eac", "erc", "erac",
}

// String returns a short mnemonic for the type.
func (t Type) String() string {
	return typeNames[t&typeMask]
}

// IsMemory returns true for code and data segment types.
func (t Type) IsMemory() bool {
	return t >= MemRO && t <= MemERAC
}

// IsGate returns true for call, task, interrupt and trap gates.
func (t Type) IsGate() bool {
	switch t {
	case Sys286CallGt, SysTaskGate, Sys286IntGate, Sys286TrapGt,
		Sys386CallGt, Sys386IntGate, Sys386TrapGt:
		return true
	}
	return false
}

// IsSystem returns true for system segments (TSS, LDT and the null types).
func (t Type) IsSystem() bool {
	return !t.IsMemory() && !t.IsGate()
}

// IsTSS returns true for available and busy task state segment types.
func (t Type) IsTSS() bool {
	switch t {
	case Sys286TSS, Sys286BusyTSS, Sys386TSS, Sys386BusyTSS:
		return true
	}
	return false
}

// MaxByteLimit is the largest limit a descriptor can express with byte
// granularity.
const MaxByteLimit = 0xfffff

// Descriptor is an 8-byte segment descriptor in the format read by the CPU:
//
//	bits  0-15  limit 0-15
//	bits 16-39  base 0-23
//	bits 40-44  type
//	bits 45-46  DPL
//	bit     47  present
//	bits 48-51  limit 16-19
//	bit     54  default operand size is 32 bits
//	bit     55  limit granularity (0 = bytes, 1 = 4K pages)
//	bits 56-63  base 24-31
type Descriptor uint64

const (
	descTypeShift  = 40
	descDPLShift   = 45
	descPresent    = Descriptor(1) << 47
	descDef32      = Descriptor(1) << 54
	descGran       = Descriptor(1) << 55
	descLimitLo    = Descriptor(0xffff)
	descLimitHi    = Descriptor(0xf) << 48
	descBaseLo     = Descriptor(0xffffff) << 16
	descBaseHi     = Descriptor(0xff) << 56
	descTypeField  = Descriptor(typeMask) << descTypeShift
	descDPLField   = Descriptor(0x3) << descDPLShift
	descLimitField = descLimitLo | descLimitHi
	descBaseField  = descBaseLo | descBaseHi
)

// Present returns true if the present bit is set.
func (d Descriptor) Present() bool {
	return d&descPresent != 0
}

// SetPresent sets or clears the present bit.
func (d *Descriptor) SetPresent(present bool) {
	*d = d.with(descPresent, present)
}

// Type returns the descriptor type.
func (d Descriptor) Type() Type {
	return Type((d & descTypeField) >> descTypeShift)
}

// SetType updates the descriptor type.
func (d *Descriptor) SetType(t Type) {
	*d = (*d &^ descTypeField) | Descriptor(t&typeMask)<<descTypeShift
}

// DPL returns the descriptor privilege level.
func (d Descriptor) DPL() PrivilegeLevel {
	return PrivilegeLevel((d & descDPLField) >> descDPLShift)
}

// SetDPL updates the descriptor privilege level.
func (d *Descriptor) SetDPL(pl PrivilegeLevel) {
	*d = (*d &^ descDPLField) | Descriptor(pl&0x3)<<descDPLShift
}

// Base returns the 32-bit linear base address of the segment.
func (d Descriptor) Base() uint32 {
	return uint32((d&descBaseLo)>>16) | uint32((d&descBaseHi)>>32)
}

// SetBase updates the segment base address.
func (d *Descriptor) SetBase(base uint32) {
	*d = (*d &^ descBaseField) |
		Descriptor(base&0xffffff)<<16 |
		Descriptor(base>>24)<<56
}

// Limit returns the raw 20-bit segment limit. The unit depends on the
// granularity bit.
func (d Descriptor) Limit() uint32 {
	return uint32(d&descLimitLo) | uint32((d&descLimitHi)>>32)
}

// SetLimit updates the raw 20-bit segment limit; higher bits are discarded.
func (d *Descriptor) SetLimit(limit uint32) {
	*d = (*d &^ descLimitField) |
		Descriptor(limit&0xffff) |
		Descriptor((limit>>16)&0xf)<<48
}

// Granular returns true if the limit is expressed in 4K pages.
func (d Descriptor) Granular() bool {
	return d&descGran != 0
}

// SetGranular sets or clears the granularity bit.
func (d *Descriptor) SetGranular(on bool) {
	*d = d.with(descGran, on)
}

// Def32 returns true if the segment uses 32-bit operands by default.
func (d Descriptor) Def32() bool {
	return d&descDef32 != 0
}

// SetDef32 sets or clears the default operand size bit.
func (d *Descriptor) SetDef32(on bool) {
	*d = d.with(descDef32, on)
}

func (d Descriptor) with(bit Descriptor, on bool) Descriptor {
	if on {
		return d | bit
	}
	return d &^ bit
}

// SoftDescriptor is the unpacked form of a segment descriptor. Kernel code
// builds descriptors in this form and packs them when they are installed.
type SoftDescriptor struct {
	Base    uint32
	Limit   uint32
	Type    Type
	DPL     PrivilegeLevel
	Present bool
	Def32   bool
	Gran    bool
}

// Pack converts the soft descriptor to the hardware format.
func (sd SoftDescriptor) Pack() Descriptor {
	var d Descriptor
	d.SetBase(sd.Base)
	d.SetLimit(sd.Limit)
	d.SetType(sd.Type)
	d.SetDPL(sd.DPL)
	d.SetPresent(sd.Present)
	d.SetDef32(sd.Def32)
	d.SetGranular(sd.Gran)
	return d
}

// Unpack converts the hardware descriptor to its soft form.
func (d Descriptor) Unpack() SoftDescriptor {
	return SoftDescriptor{
		Base:    d.Base(),
		Limit:   d.Limit(),
		Type:    d.Type(),
		DPL:     d.DPL(),
		Present: d.Present(),
		Def32:   d.Def32(),
		Gran:    d.Granular(),
	}
}

// RegionDescriptor is the operand of the LGDT/LIDT instructions: the linear
// address of a descriptor table and its size in bytes minus one.
type RegionDescriptor struct {
	Limit uint16
	Base  uintptr
}
