package kfmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{func() { printfn("no args") }, "no args"},
		{func() { printfn("%t", true) }, "true"},
		{func() { printfn("%41t", false) }, "false"},
		{func() { printfn("%s arg", "STRING") }, "STRING arg"},
		{func() { printfn("%s arg", []byte("BYTE SLICE")) }, "BYTE SLICE arg"},
		{func() { printfn("'%4s' arg with padding", "ABC") }, "' ABC' arg with padding"},
		{func() { printfn("'%4s' arg longer than padding", "ABCDE") }, "'ABCDE' arg longer than padding"},
		{func() { printfn("uint arg: %d", uint8(10)) }, "uint arg: 10"},
		{func() { printfn("uint arg: %o", uint16(0777)) }, "uint arg: 777"},
		{func() { printfn("uint arg: 0x%x", uint32(0xbadf00d)) }, "uint arg: 0xbadf00d"},
		{func() { printfn("uint arg with padding: '%10d'", uint64(123)) }, "uint arg with padding: '       123'"},
		{func() { printfn("uint arg with padding: '%4o'", uint64(0777)) }, "uint arg with padding: '0777'"},
		{func() { printfn("uint arg with padding: '0x%10x'", uintptr(0xbadf00d)) }, "uint arg with padding: '0x000badf00d'"},
		{func() { printfn("uint arg longer than padding: '0x%5x'", int64(0xbadf00d)) }, "uint arg longer than padding: '0xbadf00d'"},
		{func() { printfn("int arg: %d", int8(-10)) }, "int arg: -10"},
		{func() { printfn("int arg: %o", int16(0777)) }, "int arg: 777"},
		{func() { printfn("int arg: %x", int32(-0xbadf00d)) }, "int arg: -badf00d"},
		{func() { printfn("int arg with padding: '%10d'", int64(-12345678)) }, "int arg with padding: ' -12345678'"},
		{func() { printfn("int arg with padding: '%5x'", -0xf) }, "int arg with padding: '-000f'"},
		{func() { printfn("zero: %d", 0) }, "zero: 0"},
		{func() { printfn("%d%%", 42) }, "42%"},
		{func() { printfn("more args", "foo", "bar") }, "more args%!(EXTRA)%!(EXTRA)"},
		{func() { printfn("missing args %s") }, "missing args (MISSING)"},
		{func() { printfn("bad verb %q", 1) }, "bad verb %!(NOVERB)%!(EXTRA)"},
		{func() { printfn("no verb %") }, "no verb %!(NOVERB)"},
		{func() { printfn("wrong type %d", "foo") }, "wrong type %!(WRONGTYPE)"},
		{func() { printfn("wrong type %s", 42) }, "wrong type %!(WRONGTYPE)"},
		{func() { printfn("wrong type %t", 42) }, "wrong type %!(WRONGTYPE)"},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()
		assert.Equal(t, spec.expOutput, buf.String(), "spec %d", specIndex)
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer
	Fprintf(&buf, "[%s] slot %4d base=%8x", "gdt", 7, uint32(0x1000))
	assert.Equal(t, "[gdt] slot    7 base=00001000", buf.String())
}

func TestPrintfToRingBuffer(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	outputSink = nil
	earlyPrintBuffer.rIndex, earlyPrintBuffer.wIndex = 0, 0

	Printf("early %s %d", "boot", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)
	assert.Equal(t, "early boot 1", buf.String(), "buffered output is flushed to the new sink")

	Printf("!")
	assert.Equal(t, "early boot 1!", buf.String())
}
