package cpu

// LoadGDT loads the GDTR register with the given linear base address and
// limit (table size in bytes minus one).
func LoadGDT(base uintptr, limit uint16)

// ActiveGDT returns the base and limit currently held by the GDTR register.
func ActiveGDT() (base uintptr, limit uint16)

// LoadTaskRegister loads the TR register with the given TSS selector. The
// referenced descriptor must be an available TSS; the CPU marks it busy.
func LoadTaskRegister(sel uint16)

// TaskRegister returns the selector currently held by the TR register.
func TaskRegister() (sel uint16)

// Halt stops instruction execution.
func Halt()
