//go:build linux && (amd64 || arm64)

package buffer

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWaitPrivate = 128 // FUTEX_WAIT | FUTEX_PRIVATE_FLAG
	futexWakePrivate = 129 // FUTEX_WAKE | FUTEX_PRIVATE_FLAG
)

// futexWait parks until *addr != val, another goroutine calls futexWake on
// addr, or the wait is interrupted. Callers must re-check the logical
// condition after this returns: spurious wakeups are possible.
func futexWait(addr *uint32, val uint32, timeout time.Duration) WaitResult {
	if atomicLoad32(addr) != val {
		return WaitNotEqual
	}

	var ts *unix.Timespec
	if timeout > 0 {
		sec := int64(timeout / time.Second)
		nsec := int64(timeout % time.Second)
		ts = &unix.Timespec{Sec: sec, Nsec: nsec}
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWaitPrivate,
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0,
		0,
	)

	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return WaitOK
	case unix.ETIMEDOUT:
		return WaitTimedOut
	default:
		return WaitOK
	}
}

func futexWake(addr *uint32, n int) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakePrivate,
		uintptr(n),
		0,
		0,
		0,
	)
}
