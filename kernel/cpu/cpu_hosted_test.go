//go:build !386

package cpu

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadowRegisters(t *testing.T) {
	origBase, origLimit := ActiveGDT()
	origTR := TaskRegister()
	defer func() {
		LoadGDT(origBase, origLimit)
		LoadTaskRegister(origTR)
	}()

	LoadGDT(0xc0001000, 8*16-1)
	base, limit := ActiveGDT()
	assert.Equal(t, uintptr(0xc0001000), base)
	assert.Equal(t, uint16(127), limit)

	LoadTaskRegister(0x28)
	assert.Equal(t, uint16(0x28), TaskRegister())
}

func TestHalt(t *testing.T) {
	defer func() {
		exitFn = os.Exit
	}()

	exitCode := -1
	exitFn = func(code int) {
		exitCode = code
	}

	Halt()
	assert.Equal(t, 1, exitCode)
}
