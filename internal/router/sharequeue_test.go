package router

import (
	"context"
	"testing"
	"time"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/transport"
)

// TestShareObjectsQueuesEmitUntilConfirmed exercises the share-before-ready
// emit queue: an Emit issued while a shareObjects request is still awaiting
// the peer's confirmation must be queued on the object, not posted ahead of
// (or lost alongside) the share itself, and delivered once the peer
// confirms.
func TestShareObjectsQueuesEmitUntilConfirmed(t *testing.T) {
	ta, tb := transport.NewInProcPair()
	a := New(Options{WorkerID: 1, WorkerName: "a", SharedObjectFactory: sharedObjectFactory})

	release := make(chan struct{})
	gotEmit := make(chan string, 1)
	b := New(Options{
		WorkerID:   2,
		WorkerName: "b",
		SharedObjectFactory: func(region buffer.Region, myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error) {
			<-release // extend the unconfirmed window so the test can race an emit into it
			so, err := sharedObjectFactory(region, myWorker, scheduler, facade)
			if err != nil {
				return nil, err
			}
			so.On("greet", func(_ *object.SharedObject, data any) { gotEmit <- data.(string) })
			return so, nil
		},
	})

	if err := a.RegisterWorker("b", ta); err != nil {
		t.Fatalf("a.RegisterWorker: %v", err)
	}
	if err := b.RegisterWorker("a", tb); err != nil {
		t.Fatalf("b.RegisterWorker: %v", err)
	}
	t.Cleanup(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		a.scheduler.Close()
		b.scheduler.Close()
		_ = ta.Close()
		_ = tb.Close()
	})

	region, err := buffer.NewMmapRegion(testSchema().TotalSize)
	if err != nil {
		t.Fatalf("NewMmapRegion: %v", err)
	}
	buf := buffer.New(testSchema(), region, a.GenerateUniqueID())
	so := object.New(buf, a.opts.WorkerID, a.scheduler, a, nil)

	shareDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shareDone <- a.ShareObjects(ctx, "b", so)
	}()

	// Wait until ShareObjects has registered the pending, unconfirmed
	// objectMeta before emitting, so the emit genuinely lands in the window
	// between the request going out and the peer's response coming back.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		meta, ok := a.objects[so.ID()]
		unconfirmed := ok && !meta.shareConfirmed
		a.mu.Unlock()
		if unconfirmed {
			break
		}
		time.Sleep(time.Millisecond)
	}

	so.Emit("greet", "hello")

	a.mu.Lock()
	meta, ok := a.objects[so.ID()]
	queued := ok && len(meta.emitQueue) == 1
	a.mu.Unlock()
	if !queued {
		t.Fatalf("expected emit queued while share unconfirmed, meta=%+v", meta)
	}

	close(release)

	if err := <-shareDone; err != nil {
		t.Fatalf("ShareObjects: %v", err)
	}

	select {
	case got := <-gotEmit:
		if got != "hello" {
			t.Fatalf("expected hello, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued emit to be delivered after share confirmed")
	}
}
