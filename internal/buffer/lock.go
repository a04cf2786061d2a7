package buffer

import (
	"context"
	"math/rand"
	"runtime"
	"time"
)

// lockSpinPollInterval bounds how long a spin-degraded Lock call sleeps
// between compareExchange attempts when no futex wait is available.
const lockSpinPollInterval = 50 * time.Microsecond

// lockID is a per-view random, non-zero 32-bit id distinguishing this view
// from any other view (including other views in the same process) over
// the same region as a lock holder.
func newLockID() uint32 {
	for {
		if v := rand.Uint32(); v != 0 {
			return v
		}
	}
}

// Lock acquires the buffer's mutex, runs fn, and releases it even if fn
// panics, mirroring a finally-equivalent release. It parks with a blocking
// futex wait while contended unless the region was constructed with
// WithSpinLock, in which case it busy-spins on compareExchange instead.
func (b *BufferStruct) Lock(fn func() error) error {
	if err := b.acquire(context.Background()); err != nil {
		return err
	}
	defer b.release()
	return fn()
}

// LockAsync acquires the buffer's mutex using a cancelable wait, runs fn,
// and releases it even if fn panics. Acquisition aborts early if ctx is
// canceled while parked, returning ctx.Err() without running fn.
func (b *BufferStruct) LockAsync(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return fn()
}

func (b *BufferStruct) acquire(ctx context.Context) error {
	h := header{b.region}
	for {
		if b.region.CompareAndSwap32(offLock, 0, b.lockID) {
			return nil
		}
		if b.spinLock {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			runtime.Gosched()
			time.Sleep(lockSpinPollInterval)
			continue
		}
		held := h.lock()
		if held == 0 {
			continue // released between our CAS attempt and this read
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.region.Wait(offLock, held, lockSpinPollInterval*20)
	}
}

func (b *BufferStruct) release() {
	b.region.Store32(offLock, 0)
	b.region.Notify(offLock, 1)
}
