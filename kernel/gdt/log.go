package gdt

import "segkern/kernel/kfmt"

// maxDeferred bounds the messages kept per critical section. A single
// operation produces at most two.
const maxDeferred = 4

type logEntry struct {
	format string
	args   []interface{}
}

// deferredLog holds messages produced while the table lock is held. The
// output sink may block, so they are only printed once the lock is released.
type deferredLog struct {
	n       int
	entries [maxDeferred]logEntry
}

func (l *deferredLog) printf(format string, args ...interface{}) {
	if l.n == len(l.entries) {
		return
	}

	l.entries[l.n] = logEntry{format: format, args: args}
	l.n++
}

func (l deferredLog) flush() {
	for i := 0; i < l.n; i++ {
		kfmt.Printf(l.entries[i].format, l.entries[i].args...)
	}
}

// takeLog detaches the pending messages from the table. It must be called
// with the lock held.
func (t *Table) takeLog() deferredLog {
	pending := t.log
	t.log = deferredLog{}
	return pending
}
