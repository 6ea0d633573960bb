package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "gdt",
		Message: "descriptor not present",
	}

	assert.Equal(t, err.Message, err.Error())

	var asErr error = err
	assert.Same(t, err, asErr.(*Error), "kernel errors are compared by identity")
}
