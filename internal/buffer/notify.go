package buffer

import (
	"context"
	"time"
)

// Notify stores v (if given) to the notify word, then wakes every parked
// waiter. Called with no values just wakes waiters without changing the
// word (used to unstick a peer during destruction).
func (b *BufferStruct) Notify(v ...uint32) {
	h := header{b.region}
	if len(v) > 0 {
		h.setNotify(v[0])
	}
	b.region.Notify(offNotify, 1<<30) // wake all
}

// Wait blocks until the notify word differs from expected or timeout
// elapses (<=0 means forever).
func (b *BufferStruct) Wait(expected uint32, timeout time.Duration) WaitResult {
	return b.region.Wait(offNotify, expected, timeout)
}

// WaitAsync is Wait with early cancellation via ctx. There is no native
// cancelable futex wait, so cancellation is layered as a poll: the call
// blocks in slices of at most 100ms and rechecks ctx.Done() between them.
// A canceled ctx yields WaitTimedOut; callers that need to tell
// cancellation from a real timeout must inspect ctx themselves.
func (b *BufferStruct) WaitAsync(ctx context.Context, expected uint32, timeout time.Duration) WaitResult {
	if timeout <= 0 {
		const slice = 100 * time.Millisecond
		for {
			select {
			case <-ctx.Done():
				return WaitTimedOut
			default:
			}
			if res := b.region.Wait(offNotify, expected, slice); res != WaitTimedOut {
				return res
			}
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return WaitTimedOut
		}
		select {
		case <-ctx.Done():
			return WaitTimedOut
		default:
		}
		slice := remaining
		if slice > 100*time.Millisecond {
			slice = 100 * time.Millisecond
		}
		if res := b.region.Wait(offNotify, expected, slice); res != WaitTimedOut {
			return res
		}
	}
}

// NotifyValue returns the current notify word without waiting.
func (b *BufferStruct) NotifyValue() uint32 {
	return header{b.region}.notify()
}

// IsDirty reports whether any of the given property numbers has its dirty
// bit set, or (with no arguments) whether any property is dirty at all.
func (b *BufferStruct) IsDirty(propNums ...int) bool {
	h := header{b.region}
	if len(propNums) == 0 {
		return h.isDirtyAny()
	}
	for _, p := range propNums {
		if h.isDirtyBit(p) {
			return true
		}
	}
	return false
}

// ResetDirty zeros the notify word and both dirty words. Callers must hold
// the lock; the write is not itself atomic across the three words.
func (b *BufferStruct) ResetDirty() {
	header{b.region}.resetDirty()
}

// LockHolder returns the lock word's current value without acquiring it: 0
// if unheld, otherwise the holding view's lockID. Inspection-only, useful
// for a debug/monitoring surface; callers must not treat a 0 read as a
// license to skip Lock/LockAsync.
func (b *BufferStruct) LockHolder() uint32 {
	return header{b.region}.lock()
}
