// Package sync provides the spinlock that serializes access to structures
// shared with the CPU, such as the descriptor tables.
package sync

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYield is the number of failed acquisition attempts after which a
// waiting task gives up its time slice.
const spinsBeforeYield = 64

var (
	// yieldFn is invoked by contended Acquire calls. Tests may replace it.
	yieldFn = runtime.Gosched
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The zero value is an unlocked lock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for spins := uint32(0); !atomic.CompareAndSwapUint32(&l.state, 0, 1); spins++ {
		if spins == spinsBeforeYield {
			yieldFn()
			spins = 0
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Held returns true if the lock is currently held by some task.
func (l *Spinlock) Held() bool {
	return atomic.LoadUint32(&l.state) == 1
}
