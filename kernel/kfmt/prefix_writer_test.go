package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{"", ""},
		{"\n", "[gdt] \n"},
		{"no line break anywhere", "[gdt] no line break anywhere"},
		{"line feed at the end\n", "[gdt] line feed at the end\n"},
		{"\ngrew table\nto 16\nentries", "[gdt] \n[gdt] grew table\n[gdt] to 16\n[gdt] entries"},
	}

	var buf bytes.Buffer

	for specIndex, spec := range specs {
		buf.Reset()
		w := PrefixWriter{Sink: &buf, Prefix: []byte("[gdt] ")}

		wrote, err := w.Write([]byte(spec.input))
		assert.NoError(t, err, "spec %d", specIndex)
		assert.Equal(t, len(spec.input), wrote, "spec %d", specIndex)
		assert.Equal(t, spec.exp, buf.String(), "spec %d", specIndex)
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	w := PrefixWriter{Sink: &buf, Prefix: []byte("> ")}

	w.Write([]byte("partial "))
	w.Write([]byte("line\nnext"))
	assert.Equal(t, "> partial line\n> next", buf.String())
}

type failingWriter struct {
	failAfter int
}

var errWrite = errors.New("write failed")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.failAfter == 0 {
		return 0, errWrite
	}
	w.failAfter--
	return len(p), nil
}

func TestPrefixWriterErrors(t *testing.T) {
	t.Run("prefix write fails", func(t *testing.T) {
		w := PrefixWriter{Sink: &failingWriter{}, Prefix: []byte("> ")}
		n, err := w.Write([]byte("data"))
		assert.Equal(t, errWrite, err)
		assert.Zero(t, n)
	})

	t.Run("data write fails", func(t *testing.T) {
		w := PrefixWriter{Sink: &failingWriter{failAfter: 1}, Prefix: []byte("> ")}
		n, err := w.Write([]byte("data"))
		assert.Equal(t, errWrite, err)
		assert.Zero(t, n)
	})
}
