//go:build linux && (amd64 || arm64)

package buffer

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// mmapRegion is a Region backed by an anonymous, process-shared mmap
// mapping. Two Go processes that share the mapping (e.g. inherited across
// fork, or remapped from the same backing file) observe the same memory;
// within one process it behaves like any other shared buffer, letting
// goroutine "workers" exercise the exact same code path network workers
// would use.
type mmapRegion struct {
	mem []byte
}

// NewMmapRegion allocates a MAP_SHARED|MAP_ANONYMOUS region of size bytes.
func NewMmapRegion(size int) (Region, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("buffer: mmap failed: %w", err)
	}
	return &mmapRegion{mem: mem}, nil
}

func (r *mmapRegion) Bytes() []byte { return r.mem }

func (r *mmapRegion) Load32(off int) uint32             { return atomicLoad32(word32(r.mem, off)) }
func (r *mmapRegion) Store32(off int, v uint32)         { atomicStore32(word32(r.mem, off), v) }
func (r *mmapRegion) CompareAndSwap32(off int, old, new uint32) bool {
	return atomicCAS32(word32(r.mem, off), old, new)
}

func (r *mmapRegion) Load64(off int) uint64     { return atomicLoad64(word64(r.mem, off)) }
func (r *mmapRegion) Store64(off int, v uint64) { atomicStore64(word64(r.mem, off), v) }

func (r *mmapRegion) Wait(off int, expected uint32, timeout time.Duration) WaitResult {
	return futexWait(word32(r.mem, off), expected, timeout)
}

func (r *mmapRegion) Notify(off int, n int) {
	futexWake(word32(r.mem, off), n)
}

func (r *mmapRegion) Close() error {
	if len(r.mem) == 0 {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}
