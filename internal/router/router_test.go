package router

import (
	"context"
	"testing"
	"time"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/transport"
)

func testSchema() *buffer.Schema {
	return buffer.BuildSchema("TEST", 0x54534554, []buffer.PropertyDef{
		{Name: "numProp1", Kind: buffer.KindNumber},
		{Name: "stringProp1", Kind: buffer.KindString},
	})
}

func sharedObjectFactory(region buffer.Region, myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error) {
	buf, err := buffer.Open(testSchema(), region)
	if err != nil {
		return nil, err
	}
	return object.New(buf, myWorker, scheduler, facade, nil), nil
}

// pair links two independent, non-singleton Routers over an InProc
// transport pair, each registered as the other's peer under name "a"/"b".
func pair(t *testing.T) (a, b *Router) {
	t.Helper()
	ta, tb := transport.NewInProcPair()
	a = New(Options{WorkerID: 1, WorkerName: "a", SharedObjectFactory: sharedObjectFactory})
	b = New(Options{WorkerID: 2, WorkerName: "b", SharedObjectFactory: sharedObjectFactory})
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
	return a, b
}

func TestSendAsyncPingPong(t *testing.T) {
	a, b := pair(t)
	b.opts.OnMessage = func(ctx context.Context, peer string, msg any) (any, error) {
		if msg != "ping" {
			t.Errorf("b received unexpected message: %v", msg)
		}
		return "pong", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := a.SendAsync(ctx, "b", "ping")
	if err != nil {
		t.Fatalf("SendAsync: %v", err)
	}
	var reply string
	if err := unmarshalInto(raw, &reply); err != nil {
		t.Fatalf("unmarshalInto: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("expected pong, got %q", reply)
	}
}

func TestSendFireAndForget(t *testing.T) {
	a, b := pair(t)
	received := make(chan any, 1)
	b.opts.OnMessage = func(ctx context.Context, peer string, msg any) (any, error) {
		received <- msg
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Send(ctx, "b", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "hello" {
			t.Fatalf("expected hello, got %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestShareObjectsLoopback(t *testing.T) {
	a, b := pair(t)

	region, err := buffer.NewMmapRegion(testSchema().TotalSize)
	if err != nil {
		t.Fatalf("NewMmapRegion: %v", err)
	}
	buf := buffer.New(testSchema(), region, a.GenerateUniqueID())
	so := object.New(buf, a.opts.WorkerID, a.scheduler, a, nil)
	if err := so.Set("numProp1", 42.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := so.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	shared := make(chan *object.SharedObject, 1)
	b.opts.OnObjectShared = func(peerSO *object.SharedObject) { shared <- peerSO }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.ShareObjects(ctx, "b", so); err != nil {
		t.Fatalf("ShareObjects: %v", err)
	}

	var peerSO *object.SharedObject
	select {
	case peerSO = <-shared:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnObjectShared")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if peerSO.Get("numProp1") == 42.0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer view never converged, got %v", peerSO.Get("numProp1"))
}

func TestShareObjectsRejectsDuplicate(t *testing.T) {
	a, b := pair(t)
	_ = b

	region, err := buffer.NewMmapRegion(testSchema().TotalSize)
	if err != nil {
		t.Fatalf("NewMmapRegion: %v", err)
	}
	buf := buffer.New(testSchema(), region, a.GenerateUniqueID())
	so := object.New(buf, a.opts.WorkerID, a.scheduler, a, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.ShareObjects(ctx, "b", so); err != nil {
		t.Fatalf("first ShareObjects: %v", err)
	}
	if err := a.ShareObjects(ctx, "b", so); err != ErrAlreadyShared {
		t.Fatalf("expected ErrAlreadyShared, got %v", err)
	}
}

func TestForgetObjectsNotifiesPeer(t *testing.T) {
	a, b := pair(t)

	region, err := buffer.NewMmapRegion(testSchema().TotalSize)
	if err != nil {
		t.Fatalf("NewMmapRegion: %v", err)
	}
	buf := buffer.New(testSchema(), region, a.GenerateUniqueID())
	so := object.New(buf, a.opts.WorkerID, a.scheduler, a, nil)

	forgotten := make(chan *object.SharedObject, 1)
	b.opts.OnBeforeObjectForgotten = func(peerSO *object.SharedObject) { forgotten <- peerSO }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.ShareObjects(ctx, "b", so); err != nil {
		t.Fatalf("ShareObjects: %v", err)
	}

	var peerSO *object.SharedObject
	b.opts.OnObjectShared = func(peerSO *object.SharedObject) {}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := b.GetSharedObjectByID(so.ID()); ok {
			peerSO = got
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if peerSO == nil {
		t.Fatal("peer never registered the shared object")
	}

	a.ForgetObjects([]*object.SharedObject{so})

	select {
	case got := <-forgotten:
		if got != peerSO {
			t.Fatal("forgot a different object than expected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnBeforeObjectForgotten")
	}

	if _, ok := b.GetSharedObjectByID(so.ID()); ok {
		t.Fatal("peer registry still holds the forgotten object")
	}
}

func TestCloseWorkerGraceful(t *testing.T) {
	a, b := pair(t)
	_ = b

	res, err := a.CloseWorker(context.Background(), "b", time.Second)
	if err != nil {
		t.Fatalf("CloseWorker: %v", err)
	}
	if res != CloseGraceful {
		t.Fatalf("expected graceful close, got %v", res)
	}
}

func TestCloseWorkerForcedOnTimeout(t *testing.T) {
	ta, tb := transport.NewInProcPair()
	a := New(Options{WorkerID: 1, WorkerName: "a"})
	if err := a.RegisterWorker("b", ta); err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}
	t.Cleanup(func() { _ = tb.Close() })

	// b never sends "ready", so waitReady inside CloseWorker times out and
	// the transport is forced shut instead of gracefully closed.
	res, err := a.CloseWorker(context.Background(), "b", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("CloseWorker: %v", err)
	}
	if res != CloseForced {
		t.Fatalf("expected forced close, got %v", res)
	}
}
