package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Post once the transport (or its peer) has
// closed.
var ErrClosed = errors.New("transport: closed")

// InProc is a duplex, in-memory Transport connecting two goroutines in the
// same process: Post on one side delivers to the other's Messages
// channel, and vice versa. Modeled on a duplex pipe over two independent
// one-directional channels, the same shape the teacher's ShmConn gives a
// pair of shared-memory rings.
type InProc struct {
	out      chan<- []byte
	in       <-chan []byte
	loopback *sync.Map
	closed   atomic.Bool
	once     sync.Once
}

// NewInProcPair returns two InProc transports wired to each other: a's
// Post is b's Messages, and b's Post is a's Messages. Both share one
// loopback table, so PutLoopback on either side is visible to TakeLoopback
// on the other.
func NewInProcPair() (a, b *InProc) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	loopback := &sync.Map{}
	a = &InProc{out: ab, in: ba, loopback: loopback}
	b = &InProc{out: ba, in: ab, loopback: loopback}
	return a, b
}

// PutLoopback publishes value under key for the peer's TakeLoopback.
func (t *InProc) PutLoopback(key float64, value any) { t.loopback.Store(key, value) }

// TakeLoopback retrieves and clears a value published by the peer.
func (t *InProc) TakeLoopback(key float64) (any, bool) {
	v, ok := t.loopback.LoadAndDelete(key)
	return v, ok
}

func (t *InProc) Post(ctx context.Context, msg []byte, transferables ...[]byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	cp := append([]byte(nil), msg...)
	select {
	case t.out <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *InProc) Messages() <-chan []byte { return t.in }

func (t *InProc) Terminate() error { return t.Close() }

func (t *InProc) Close() error {
	t.closed.Store(true)
	t.once.Do(func() { close(t.out) })
	return nil
}
