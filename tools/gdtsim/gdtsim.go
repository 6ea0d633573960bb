// Command gdtsim drives the descriptor table and the task-context registry
// from a set of simulated threads and prints the resulting table.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"

	"segkern/kernel"
	"segkern/kernel/cpu"
	"segkern/kernel/kfmt"
	"segkern/kernel/kmain"
	"segkern/kernel/mem"
	"segkern/kernel/mem/mmap"
	"segkern/kernel/task"
)

type options struct {
	threads  int
	rounds   int
	capacity int
	growBy   int
	limit    int
	useMmap  bool
}

type stats struct {
	sync.Mutex

	acquired int
	released int
	failures map[string]int
}

func (s *stats) fail(op string, err *kernel.Error) {
	s.Lock()
	s.failures[op+": "+err.Message]++
	s.Unlock()
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[gdtsim] error: %s\n", err.Error())
	os.Exit(1)
}

func allocator(opts options) mem.Allocator {
	var alloc mem.Allocator = mem.HeapAllocator{}
	if opts.useMmap {
		alloc = mmap.Allocator{}
	}

	// The table only calls its allocator while holding its own lock.
	if opts.limit > 0 {
		alloc = &mem.LimitedAllocator{Allocator: alloc, Limit: mem.Size(opts.limit)}
	}
	return alloc
}

func runThread(reg *task.Registry, rounds int, st *stats) {
	var tss task.TSS
	for i := 0; i < rounds; i++ {
		h, err := reg.Acquire(task.ImageOf(&tss))
		if err != nil {
			st.fail("acquire", err)
			continue
		}

		if err = reg.SetActive(h); err != nil {
			st.fail("activate", err)
		}

		if err = reg.Release(h); err != nil {
			st.fail("release", err)
			continue
		}

		st.Lock()
		st.acquired++
		st.released++
		st.Unlock()
	}
}

func run(opts options, w io.Writer) error {
	if opts.threads <= 0 || opts.rounds <= 0 {
		return errors.New("threads and rounds must be positive")
	}

	kfmt.SetOutputSink(w)

	reg, kerr := kmain.Init(kmain.Config{
		Allocator:       allocator(opts),
		InitialCapacity: opts.capacity,
		GrowBy:          opts.growBy,
	})
	if kerr != nil {
		return kerr
	}

	st := &stats{failures: make(map[string]int)}

	var wg sync.WaitGroup
	wg.Add(opts.threads)
	for i := 0; i < opts.threads; i++ {
		go func() {
			defer wg.Done()
			runThread(reg, opts.rounds, st)
		}()
	}
	wg.Wait()

	table := reg.Table()
	fmt.Fprintf(w, "threads: %d, rounds: %d\n", opts.threads, opts.rounds)
	fmt.Fprintf(w, "acquired: %d, released: %d\n", st.acquired, st.released)
	for reason, count := range st.failures {
		fmt.Fprintf(w, "failed %s: %d\n", reason, count)
	}
	fmt.Fprintf(w, "capacity: %d, free: %d, active: %d\n", table.Capacity(), table.FreeCount(), reg.Active().Index)

	base, limit := cpu.ActiveGDT()
	fmt.Fprintf(w, "gdtr: base=%#x limit=%#x tr=%#x\n", base, limit, cpu.TaskRegister())
	if rd := table.Region(); rd.Base != base || rd.Limit != limit {
		return errors.New("installed table does not match the table region")
	}

	fmt.Fprintln(w, "descriptors:")
	table.Dump(&kfmt.PrefixWriter{Sink: w, Prefix: []byte("  ")})

	return nil
}

func main() {
	var opts options
	flag.IntVar(&opts.threads, "threads", 4, "number of simulated threads")
	flag.IntVar(&opts.rounds, "rounds", 100, "acquire/activate/release rounds per thread")
	flag.IntVar(&opts.capacity, "cap", 0, "initial number of allocatable descriptors (0 selects the default)")
	flag.IntVar(&opts.growBy, "grow", 0, "descriptors added on each growth (0 selects the default)")
	flag.IntVar(&opts.limit, "limit", 0, "cap table storage to this many bytes (0 disables the cap)")
	flag.BoolVar(&opts.useMmap, "mmap", false, "back the table with anonymous mappings instead of the Go heap")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		exit(err)
	}
}
