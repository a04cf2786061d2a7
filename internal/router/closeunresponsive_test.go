package router

import (
	"context"
	"testing"
	"time"

	"github.com/lightning-js/threadx/internal/transport"
)

// TestCloseWorkerForcedOnUnresponsivePeer exercises a peer that completed
// the ready handshake but then never acks a close request (e.g. busy in its
// own work), as opposed to TestCloseWorkerForcedOnTimeout's peer that never
// becomes ready at all. Both must end up forcing the transport shut once
// CloseWorker's timeout elapses.
func TestCloseWorkerForcedOnUnresponsivePeer(t *testing.T) {
	ta, tb := transport.NewInProcPair()
	a := New(Options{WorkerID: 1, WorkerName: "a"})
	if err := a.RegisterWorker("b", ta); err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}

	stop := make(chan struct{})
	t.Cleanup(func() {
		close(stop)
		_ = tb.Close()
	})

	go func() {
		raw, err := encodeEnvelope(envelope{Type: msgReady})
		if err != nil {
			return
		}
		_ = tb.Post(context.Background(), raw)
		for {
			select {
			case <-stop:
				return
			case _, ok := <-tb.Messages():
				if !ok {
					return
				}
				// Busy-looping peer: every message, including the close
				// request itself, is read and dropped rather than acked.
			}
		}
	}()

	p, ok := a.peer("b")
	if !ok {
		t.Fatal("peer \"b\" not registered")
	}
	select {
	case <-p.ready:
	case <-time.After(time.Second):
		t.Fatal("peer never completed the ready handshake")
	}

	res, err := a.CloseWorker(context.Background(), "b", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CloseWorker: %v", err)
	}
	if res != CloseForced {
		t.Fatalf("expected forced close, got %v", res)
	}
}
