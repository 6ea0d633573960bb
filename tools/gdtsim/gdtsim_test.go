package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("concurrent threads", func(t *testing.T) {
		var buf bytes.Buffer
		err := run(options{threads: 4, rounds: 50, capacity: 2, growBy: 2}, &buf)
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "acquired: 200, released: 200\n")
		assert.NotContains(t, out, "failed")
		assert.Contains(t, out, "[gdt]")
		assert.Contains(t, out, ", active: 5\n")
		assert.Contains(t, out, "descriptors:\n  gdt: ")
		assert.Contains(t, out, "\n     1 sel=0008          er dpl=0 base=00000000 limit=fffff\n")
		assert.Contains(t, out, "\n     5 sel=0028      tss386 dpl=0 ")
	})

	t.Run("mmap backed", func(t *testing.T) {
		var buf bytes.Buffer
		err := run(options{threads: 2, rounds: 10, capacity: 1, growBy: 1, useMmap: true}, &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "acquired: 20, released: 20\n")
	})

	t.Run("storage limit", func(t *testing.T) {
		var buf bytes.Buffer

		// Room for the five boot descriptors and the placeholder only.
		err := run(options{threads: 2, rounds: 3, capacity: 1, growBy: 1, limit: 6 * 8}, &buf)
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "acquired: 0, released: 0\n")
		assert.Contains(t, out, "failed acquire: descriptor table growth failed: 6\n")
	})

	t.Run("invalid options", func(t *testing.T) {
		assert.Error(t, run(options{threads: 0, rounds: 1}, &bytes.Buffer{}))
	})
}
