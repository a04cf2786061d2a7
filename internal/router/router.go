// Package router implements the Worker Router: a per-worker coordinator
// that registers peer workers, performs a ready-handshake, dispatches
// typed control messages, correlates request/response pairs, and routes
// SharedObject events between peers.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/transport"
	"github.com/lightning-js/threadx/internal/txlog"
)

// Options configures a Router at Init.
type Options struct {
	WorkerID   uint32 // 1..899
	WorkerName string

	// SharedObjectFactory constructs the concrete SharedObject variant for
	// an inbound shareObjects buffer, keyed on the region's stamped type
	// id (buffer.ExtractTypeID). A nil return is a FactoryFailure.
	SharedObjectFactory func(region buffer.Region, myWorkerID uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error)

	OnObjectShared          func(so *object.SharedObject)
	OnBeforeObjectForgotten func(so *object.SharedObject)
	// OnMessage handles any inbound message whose discriminator doesn't
	// match a control type. Its return value (or error) is reflected back
	// as a response if the inbound message carried an async id.
	OnMessage func(ctx context.Context, peerName string, msg any) (any, error)
}

type objectMeta struct {
	so             *object.SharedObject
	peer           string
	shareConfirmed bool
	emitQueue      []queuedEmit
}

type queuedEmit struct {
	event string
	data  any
}

type pendingRequest struct {
	peer     string
	resultCh chan asyncResult
}

type asyncResult struct {
	data json.RawMessage
	err  error
}

type peerState struct {
	name      string
	transport transport.Transport
	ready     chan struct{}
	readyOnce sync.Once
}

func newPeerState(name string, t transport.Transport) *peerState {
	return &peerState{name: name, transport: t, ready: make(chan struct{})}
}

func (p *peerState) markReady() { p.readyOnce.Do(func() { close(p.ready) }) }

// Router is the per-worker singleton coordinator.
type Router struct {
	opts      Options
	scheduler *object.Queue
	uniqueIDs *uniqueIDGenerator

	mu           sync.Mutex
	peers        map[string]*peerState
	objects      map[float64]*objectMeta
	pending      map[int64]*pendingRequest
	nextAsyncID  int64
	suppressEmit bool
	closed       bool
	wg           sync.WaitGroup
}

var instance atomic.Pointer[Router]

// Instance returns the process-wide Router, or nil if Init has not been
// called.
func Instance() *Router { return instance.Load() }

// WorkerID returns the initialized Router's worker id, or 0 if unset.
func WorkerID() uint32 {
	if r := Instance(); r != nil {
		return r.opts.WorkerID
	}
	return 0
}

// WorkerName returns the initialized Router's worker name, or "" if unset.
func WorkerName() string {
	if r := Instance(); r != nil {
		return r.opts.WorkerName
	}
	return ""
}

// New constructs a standalone Router, independent of the process-wide
// singleton Init/Instance track. Use this directly when a process hosts
// more than one worker (e.g. a demo running both sides of a conversation
// in one binary); use Init/Instance when a process hosts exactly one.
func New(opts Options) *Router {
	return &Router{
		opts:      opts,
		scheduler: object.NewQueue(),
		uniqueIDs: newUniqueIDGenerator(opts.WorkerID),
		peers:     make(map[string]*peerState),
		objects:   make(map[float64]*objectMeta),
		pending:   make(map[int64]*pendingRequest),
	}
}

// Init constructs the process-wide Router. Fails with ErrAlreadyInitialized
// if one already exists.
func Init(opts Options) (*Router, error) {
	r := New(opts)
	if !instance.CompareAndSwap(nil, r) {
		return nil, ErrAlreadyInitialized
	}
	return r, nil
}

// Destroy tears the Router down: closes every registered peer transport
// and clears the singleton slot. Warns and returns if no Router exists.
func Destroy() {
	r := instance.Load()
	if r == nil {
		txlog.Logger().Warn("router.Destroy called with no active router")
		return
	}
	r.teardown()
	instance.Store(nil)
}

// teardown closes every registered peer transport and this Router's
// scheduler, marking it closed. Idempotent. Used both by the singleton
// Destroy path and by handleClose tearing this worker's own side down in
// response to a peer's close request.
func (r *Router) teardown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	peers := make([]*peerState, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	var (
		errsMu sync.Mutex
		errs   error
	)
	var eg errgroup.Group
	for _, p := range peers {
		p := p
		eg.Go(func() error {
			if err := p.transport.Close(); err != nil {
				errsMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("closing peer %q: %w", p.name, err))
				errsMu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	if errs != nil {
		txlog.Logger().Warn("router: errors closing peers during teardown", zap.Error(errs))
	}
	r.scheduler.Close()
}

// WorkerID returns this Router's own worker id.
func (r *Router) WorkerID() uint32 { return r.opts.WorkerID }

// WorkerName returns this Router's own worker name.
func (r *Router) WorkerName() string { return r.opts.WorkerName }

// Scheduler exposes the Router's shared microtask queue, used to construct
// SharedObjects that must coalesce onto this worker's single execution
// thread.
func (r *Router) Scheduler() object.Scheduler { return r.scheduler }

// GenerateUniqueID mints the next globally-unique id for this worker.
func (r *Router) GenerateUniqueID() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uniqueIDs.Generate()
}

// RegisterWorker stores t under name, seeds its ready-promise, and starts
// listening for inbound frames.
func (r *Router) RegisterWorker(name string, t transport.Transport) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterNotInit
	}
	p := newPeerState(name, t)
	r.peers[name] = p
	r.mu.Unlock()

	r.wg.Add(1)
	go r.receiveLoop(p)

	env := envelope{Type: msgReady}
	raw, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return t.Post(context.Background(), raw)
}

func (r *Router) peer(name string) (*peerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[name]
	return p, ok
}

func (r *Router) waitReady(ctx context.Context, p *peerState) error {
	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send posts msg to the peer registered as name, awaiting its ready-
// handshake first. Fire-and-forget: no response is awaited.
func (r *Router) Send(ctx context.Context, name string, msg any, transferables ...[]byte) error {
	p, ok := r.peer(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorker, name)
	}
	if err := r.waitReady(ctx, p); err != nil {
		return err
	}
	data, err := marshalData(msg)
	if err != nil {
		return err
	}
	raw, err := encodeEnvelope(envelope{Data: data})
	if err != nil {
		return err
	}
	return p.transport.Post(ctx, raw, transferables...)
}

// SendAsyncOptions configures SendAsync.
type SendAsyncOptions struct {
	SkipResponseWait bool
}

// SendAsync posts msg to name and awaits the correlated response, unless
// SkipResponseWait is set.
func (r *Router) SendAsync(ctx context.Context, name string, msg any, opts ...SendAsyncOptions) (json.RawMessage, error) {
	var o SendAsyncOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	p, ok := r.peer(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorker, name)
	}
	if err := r.waitReady(ctx, p); err != nil {
		return nil, err
	}

	data, err := marshalData(msg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.nextAsyncID++
	id := r.nextAsyncID
	pending := &pendingRequest{peer: name, resultCh: make(chan asyncResult, 1)}
	if !o.SkipResponseWait {
		r.pending[id] = pending
	}
	r.mu.Unlock()

	raw, err := encodeEnvelope(envelope{Data: data, AsyncMsgID: &id})
	if err != nil {
		return nil, err
	}
	if err := p.transport.Post(ctx, raw); err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return nil, err
	}
	if o.SkipResponseWait {
		return nil, nil
	}

	select {
	case res := <-pending.resultCh:
		return res.data, res.err
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// CloseResult is the outcome of CloseWorker.
type CloseResult int

const (
	CloseGraceful CloseResult = iota
	CloseForced
)

func (c CloseResult) String() string {
	if c == CloseGraceful {
		return "graceful"
	}
	return "forced"
}

// CloseWorker asks the peer to close, waiting up to timeout for its
// response before forcing the transport shut. The peer is removed from
// the registry either way.
func (r *Router) CloseWorker(ctx context.Context, name string, timeout time.Duration) (CloseResult, error) {
	p, ok := r.peer(name)
	if !ok {
		return CloseForced, fmt.Errorf("%w: %q", ErrUnknownWorker, name)
	}
	defer func() {
		r.mu.Lock()
		delete(r.peers, name)
		r.mu.Unlock()
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.waitReady(timeoutCtx, p); err != nil {
		p.transport.Terminate()
		return CloseForced, nil
	}

	r.mu.Lock()
	r.nextAsyncID++
	id := r.nextAsyncID
	pending := &pendingRequest{peer: name, resultCh: make(chan asyncResult, 1)}
	r.pending[id] = pending
	r.mu.Unlock()

	raw, err := encodeEnvelope(envelope{Type: msgClose, AsyncMsgID: &id})
	if err != nil {
		return CloseForced, err
	}
	if err := p.transport.Post(timeoutCtx, raw); err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}

	select {
	case <-pending.resultCh:
		return CloseGraceful, nil
	case <-timeoutCtx.Done():
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		txlog.Logger().Warn("closeWorker: peer did not confirm in time, forcing", zap.String("peer", name))
		p.transport.Terminate()
		return CloseForced, nil
	}
}

// GetSharedObjectByID returns the object registered under id, if any.
func (r *Router) GetSharedObjectByID(id float64) (*object.SharedObject, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.objects[id]
	if !ok {
		return nil, false
	}
	return meta.so, true
}
