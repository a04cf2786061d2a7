// Command threadxdemo runs two in-process workers, alice and bob, joined
// by an InProc transport pair: alice shares a SyncPointObject with bob,
// both sides mutate it, and the demo prints each side's view once they
// converge.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	threadx "github.com/lightning-js/threadx"
	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/router"
	"github.com/lightning-js/threadx/internal/transport"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ta, tb := transport.NewInProcPair()

	var bobView *threadx.SyncPointObject
	bobReceived := make(chan *threadx.SyncPointObject, 1)

	alice := router.New(router.Options{WorkerID: 1, WorkerName: "alice"})
	bob := router.New(router.Options{
		WorkerID:   2,
		WorkerName: "bob",
		SharedObjectFactory: func(region buffer.Region, myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error) {
			so, err := threadx.OpenSyncPointObject(region, myWorker, scheduler, facade, nil)
			if err != nil {
				return nil, err
			}
			bobView = &threadx.SyncPointObject{SharedObject: so}
			bobReceived <- bobView
			return so, nil
		},
	})

	if err := alice.RegisterWorker("bob", ta); err != nil {
		return err
	}
	if err := bob.RegisterWorker("alice", tb); err != nil {
		return err
	}

	so, err := threadx.NewSyncPointObject(alice.WorkerID(), alice.Scheduler(), alice, nil)
	if err != nil {
		return err
	}
	if err := so.SetNumProp1(42); err != nil {
		return err
	}
	if err := so.SetStringProp1("hello from alice"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := alice.ShareObjects(ctx, "bob", so.SharedObject); err != nil {
		return err
	}

	select {
	case peerView := <-bobReceived:
		if err := awaitConvergence(peerView); err != nil {
			return err
		}
		fmt.Printf("bob sees numProp1=%v stringProp1=%q\n", peerView.NumProp1(), peerView.StringProp1())
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := bobView.SetNumProp2(7); err != nil {
		return err
	}
	if err := bobView.Flush(); err != nil {
		return err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && so.NumProp2() != 7 {
		time.Sleep(5 * time.Millisecond)
	}
	fmt.Printf("alice sees numProp1=%v numProp2=%v stringProp1=%q\n", so.NumProp1(), so.NumProp2(), so.StringProp1())

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	result, err := alice.CloseWorker(closeCtx, "bob", time.Second)
	if err != nil {
		return err
	}
	fmt.Println("closed bob:", result)
	return nil
}

func awaitConvergence(so *threadx.SyncPointObject) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if so.NumProp1() == 42 && so.StringProp1() == "hello from alice" {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("bob's view never converged: numProp1=%v stringProp1=%q", so.NumProp1(), so.StringProp1())
}
