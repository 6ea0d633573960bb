//go:build !386

package cpu

import (
	"os"
	"sync/atomic"
)

// Shadow copies of the registers written by the hosted implementation.
var (
	gdtBase      uintptr
	gdtLimit     uint32
	taskRegister uint32

	// exitFn is mocked by tests.
	exitFn = os.Exit
)

// LoadGDT records the given descriptor table base address and limit.
func LoadGDT(base uintptr, limit uint16) {
	atomic.StoreUintptr(&gdtBase, base)
	atomic.StoreUint32(&gdtLimit, uint32(limit))
}

// ActiveGDT returns the values passed to the last LoadGDT call.
func ActiveGDT() (base uintptr, limit uint16) {
	return atomic.LoadUintptr(&gdtBase), uint16(atomic.LoadUint32(&gdtLimit))
}

// LoadTaskRegister records sel as the active task selector.
func LoadTaskRegister(sel uint16) {
	atomic.StoreUint32(&taskRegister, uint32(sel))
}

// TaskRegister returns the selector passed to the last LoadTaskRegister call.
func TaskRegister() (sel uint16) {
	return uint16(atomic.LoadUint32(&taskRegister))
}

// Halt stops the hosted kernel by terminating the process with a non-zero
// exit status.
func Halt() {
	exitFn(1)
}
