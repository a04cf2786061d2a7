// Package threadx is a cross-goroutine (or cross-process, over the ws
// transport) shared-memory data-sharing runtime: workers exchange
// arbitrary async messages and long-lived SharedObjects whose scalar
// fields converge via a shared byte buffer and atomic operations, without
// a central owner deciding whose write wins.
package threadx

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/router"
	"github.com/lightning-js/threadx/internal/transport"
)

// Options configures Init. WorkerID must be in [1, 899]; WorkerName is the
// label peers address this worker by in RegisterWorker/Send/ShareObjects
// calls from the other side.
type Options struct {
	WorkerID   uint32
	WorkerName string

	OnObjectShared          func(so *object.SharedObject)
	OnBeforeObjectForgotten func(so *object.SharedObject)
	OnMessage               func(ctx context.Context, peerName string, msg any) (any, error)
}

// Init constructs the process-wide Worker Router, wiring SyncPointObject as
// the concrete type inbound shareObjects messages are opened as. Fails with
// ErrAlreadyInitialized if a Router already exists in this process.
func Init(opts Options) error {
	_, err := router.Init(router.Options{
		WorkerID:                opts.WorkerID,
		WorkerName:              opts.WorkerName,
		SharedObjectFactory:     openSyncPointObject,
		OnObjectShared:          opts.OnObjectShared,
		OnBeforeObjectForgotten: opts.OnBeforeObjectForgotten,
		OnMessage:               opts.OnMessage,
	})
	return err
}

func openSyncPointObject(region buffer.Region, myWorkerID uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error) {
	return OpenSyncPointObject(region, myWorkerID, scheduler, facade, nil)
}

// Destroy tears the process-wide Router down.
func Destroy() { router.Destroy() }

// WorkerID returns the initialized Router's worker id, or 0 if unset.
func WorkerID() uint32 { return router.WorkerID() }

// WorkerName returns the initialized Router's worker name, or "" if unset.
func WorkerName() string { return router.WorkerName() }

// RegisterWorker registers t as the transport for the peer named name, and
// starts the ready-handshake with it.
func RegisterWorker(name string, t transport.Transport) error {
	r := router.Instance()
	if r == nil {
		return ErrNotInitialized
	}
	return r.RegisterWorker(name, t)
}

// CloseWorker asks the peer named name to close gracefully, waiting up to
// timeout before forcing its transport shut.
func CloseWorker(ctx context.Context, name string, timeout time.Duration) (router.CloseResult, error) {
	r := router.Instance()
	if r == nil {
		return router.CloseForced, ErrNotInitialized
	}
	return r.CloseWorker(ctx, name, timeout)
}

// Send posts msg to the peer named name, fire-and-forget.
func Send(ctx context.Context, name string, msg any) error {
	r := router.Instance()
	if r == nil {
		return ErrNotInitialized
	}
	return r.Send(ctx, name, msg)
}

// SendAsync posts msg to name and awaits its correlated response.
func SendAsync(ctx context.Context, name string, msg any) (any, error) {
	r := router.Instance()
	if r == nil {
		return nil, ErrNotInitialized
	}
	raw, err := r.SendAsync(ctx, name, msg)
	if err != nil {
		return nil, err
	}
	var v any
	if len(raw) > 0 {
		if uerr := json.Unmarshal(raw, &v); uerr != nil {
			return nil, uerr
		}
	}
	return v, nil
}

// ShareObjects hands each object in objs to the peer named name.
func ShareObjects(ctx context.Context, name string, objs ...*object.SharedObject) error {
	r := router.Instance()
	if r == nil {
		return ErrNotInitialized
	}
	return r.ShareObjects(ctx, name, objs...)
}

// ForgetObjects removes objs from this worker's registry and notifies each
// object's peer, unless opts requests silence.
func ForgetObjects(objs []*object.SharedObject, opts ...router.ForgetOptions) {
	r := router.Instance()
	if r == nil {
		return
	}
	r.ForgetObjects(objs, opts...)
}

var standaloneIDCounter int64

// generateLocalUniqueID mints a unique id scoped to the initialized
// Router's worker, or falls back to a process-local counter if no Router
// is active yet (e.g. constructing a SyncPointObject before Init).
func generateLocalUniqueID() float64 {
	if r := router.Instance(); r != nil {
		return r.GenerateUniqueID()
	}
	return float64(atomic.AddInt64(&standaloneIDCounter, 1))
}
