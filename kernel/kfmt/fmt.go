// Package kfmt implements the kernel's formatted output. Output is sent to a
// configurable sink; until a sink is attached it is kept in a small ring
// buffer so that messages logged during early boot are not lost.
package kfmt

import (
	"io"

	"segkern/kernel/sync"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// printLock serializes writers; numBuf and the ring buffer are shared.
	printLock sync.Spinlock
	numBuf    [maxBufSize]byte

	// earlyPrintBuffer stores Printf output until an output sink is set.
	earlyPrintBuffer ringBuffer

	// outputSink is where Printf sends its output. If nil, output goes to
	// earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	printLock.Acquire()
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
	printLock.Release()
}

// Printf writes a formatted message to the active output sink. It supports a
// subset of the fmt verbs:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%o  base 8 integer
//	%x  base 16 integer, lower-case
//	%t  bool
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes.
func Printf(format string, args ...interface{}) {
	Fprintf(nil, format, args...)
}

// Fprintf behaves like Printf but writes to w. A nil w selects the active
// output sink.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	printLock.Acquire()
	defer printLock.Release()

	if w == nil {
		w = outputSink
	}

	var (
		argIndex int
		start    int
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}

		writeString(w, format[start:i])

		width := 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		start = i + 1
		if i >= len(format) {
			write(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			write(w, []byte{'%'})
			continue
		case 's', 'd', 'o', 'x', 't':
		default:
			write(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			write(w, errMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++
		switch verb {
		case 's':
			fmtString(w, arg, width)
		case 'd':
			fmtInt(w, arg, 10, width)
		case 'o':
			fmtInt(w, arg, 8, width)
		case 'x':
			fmtInt(w, arg, 16, width)
		case 't':
			fmtBool(w, arg)
		}
	}

	if start < len(format) {
		writeString(w, format[start:])
	}

	for ; argIndex < len(args); argIndex++ {
		write(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		write(w, errWrongArgType)
	case b:
		write(w, trueValue)
	default:
		write(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		pad(w, ' ', width-len(s))
		writeString(w, s)
	case []byte:
		pad(w, ' ', width-len(s))
		write(w, s)
	default:
		write(w, errWrongArgType)
	}
}

// fmtInt prints v in the requested base. All built-in integer types are
// supported.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		val      uint64
		negative bool
	)

	switch n := v.(type) {
	case uint8:
		val = uint64(n)
	case uint16:
		val = uint64(n)
	case uint32:
		val = uint64(n)
	case uint64:
		val = n
	case uint:
		val = uint64(n)
	case uintptr:
		val = uint64(n)
	case int8:
		val, negative = abs(int64(n))
	case int16:
		val, negative = abs(int64(n))
	case int32:
		val, negative = abs(int64(n))
	case int64:
		val, negative = abs(n)
	case int:
		val, negative = abs(int64(n))
	default:
		write(w, errWrongArgType)
		return
	}

	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	// Digits are emitted right to left.
	pos := maxBufSize
	for {
		digit := val % base
		pos--
		if digit < 10 {
			numBuf[pos] = byte(digit) + '0'
		} else {
			numBuf[pos] = byte(digit-10) + 'a'
		}

		if val /= base; val == 0 {
			break
		}
	}

	if negative {
		pos--
		numBuf[pos] = '-'
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	digits := maxBufSize - pos
	if negative && padCh == '0' {
		// keep the sign in front of zero padding
		write(w, numBuf[pos:pos+1])
		pos++
		digits--
		width--
	}

	pad(w, padCh, width-digits)
	write(w, numBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func pad(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		write(w, []byte{ch})
	}
}

func writeString(w io.Writer, s string) {
	if len(s) != 0 {
		write(w, []byte(s))
	}
}

// write sends p to w or, if w is nil, to the early print buffer.
func write(w io.Writer, p []byte) {
	if w != nil {
		w.Write(p)
		return
	}

	earlyPrintBuffer.Write(p)
}
