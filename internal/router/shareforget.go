package router

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/transport"
	"github.com/lightning-js/threadx/internal/txlog"
)

// ShareObjects hands each SharedObject in objs to the peer registered as
// name, as a single async shareObjects request, and waits for the peer's
// response before considering the share confirmed. If the peer's transport
// is a LoopbackCarrier (a same-process InProc pair), each object's Region is
// published for the peer to take by reference; otherwise only the
// serialized bytes cross the wire, and the peer reconstructs a local-only
// copy. Fails synchronously with ErrAlreadyShared if any object already
// belongs to a peer. If the peer rejects the share, it returns an error
// carrying ErrFactoryFailure's message (rebuilt from the response, so it is
// not ErrFactoryFailure itself).
func (r *Router) ShareObjects(ctx context.Context, name string, objs ...*object.SharedObject) error {
	p, ok := r.peer(name)
	if !ok {
		return ErrUnknownWorker
	}

	r.mu.Lock()
	for _, so := range objs {
		if _, already := r.objects[so.ID()]; already {
			r.mu.Unlock()
			return ErrAlreadyShared
		}
	}
	r.mu.Unlock()

	buffers := make([][]byte, 0, len(objs))
	for _, so := range objs {
		buf, err := so.Buffer()
		if err != nil {
			return err
		}
		if carrier, ok := p.transport.(transport.LoopbackCarrier); ok {
			carrier.PutLoopback(so.ID(), buf.Region())
		}
		buffers = append(buffers, buf.Bytes())
	}

	if err := r.waitReady(ctx, p); err != nil {
		return err
	}

	r.mu.Lock()
	r.nextAsyncID++
	id := r.nextAsyncID
	pending := &pendingRequest{peer: name, resultCh: make(chan asyncResult, 1)}
	r.pending[id] = pending
	for _, so := range objs {
		r.objects[so.ID()] = &objectMeta{so: so, peer: name, shareConfirmed: false}
	}
	r.mu.Unlock()

	abort := func() {
		r.mu.Lock()
		delete(r.pending, id)
		for _, so := range objs {
			delete(r.objects, so.ID())
		}
		r.mu.Unlock()
	}

	raw, err := encodeEnvelope(envelope{Type: msgShareObjects, Buffers: buffers, AsyncMsgID: &id})
	if err != nil {
		abort()
		return err
	}
	if err := p.transport.Post(ctx, raw); err != nil {
		abort()
		return err
	}

	select {
	case res := <-pending.resultCh:
		if res.err != nil {
			abort()
			return res.err
		}
	case <-ctx.Done():
		abort()
		return ctx.Err()
	}

	type flush struct {
		soID  float64
		queue []queuedEmit
	}
	var flushes []flush
	r.mu.Lock()
	for _, so := range objs {
		meta, ok := r.objects[so.ID()]
		if !ok {
			continue
		}
		meta.shareConfirmed = true
		if len(meta.emitQueue) > 0 {
			flushes = append(flushes, flush{soID: so.ID(), queue: meta.emitQueue})
			meta.emitQueue = nil
		}
	}
	r.mu.Unlock()

	for _, f := range flushes {
		for _, qe := range f.queue {
			r.postEmit(p, f.soID, qe.event, qe.data)
		}
	}
	return nil
}

// ForgetOptions configures ForgetObjects.
type ForgetOptions struct {
	// Silent skips notifying the peer, used when the peer is the one that
	// originated the forget (SharedObject.finishDestroy calling back into
	// ForgetSilently).
	Silent bool
}

// ForgetObjects removes objs from this worker's registry and, unless
// Silent, tells each object's peer to forget it too. Objects that are not
// registered are skipped, with a warning unless Silent.
func (r *Router) ForgetObjects(objs []*object.SharedObject, opts ...ForgetOptions) {
	var o ForgetOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	byPeer := make(map[string][]float64)
	r.mu.Lock()
	for _, so := range objs {
		meta, ok := r.objects[so.ID()]
		if !ok {
			if !o.Silent {
				txlog.Logger().Warn("router: forgetObjects on an object that is not shared", zap.Float64("id", so.ID()))
			}
			continue
		}
		delete(r.objects, so.ID())
		if !o.Silent {
			byPeer[meta.peer] = append(byPeer[meta.peer], so.ID())
		}
	}
	r.mu.Unlock()

	if o.Silent {
		return
	}
	var eg errgroup.Group
	for peerName, ids := range byPeer {
		peerName, ids := peerName, ids
		eg.Go(func() error {
			p, ok := r.peer(peerName)
			if !ok {
				return nil
			}
			raw, err := encodeEnvelope(envelope{Type: msgForgetObjects, ObjectIDs: ids})
			if err != nil {
				return nil
			}
			if err := p.transport.Post(context.Background(), raw); err != nil {
				txlog.Logger().Warn("router: failed to post forgetObjects", zap.String("peer", peerName), zap.Error(err))
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// ForgetSilently implements object.RouterFacade: a SharedObject calls this
// from finishDestroy to remove itself from the registry without notifying
// its peer, since the peer already knows (it's the one destroying, or it
// already received the forget that triggered this destroy).
func (r *Router) ForgetSilently(so *object.SharedObject) {
	r.ForgetObjects([]*object.SharedObject{so}, ForgetOptions{Silent: true})
}

// EmitToPeer implements object.RouterFacade: forwards a local, non-remote
// Emit call to the object's peer as a sharedObjectEmit control message.
// Suppressed while replaying an inbound emit, to avoid bouncing it back. An
// emit issued before the peer has confirmed its shareObjects response is
// queued on the object's emitQueue instead of racing the share, and drained
// by ShareObjects once the peer confirms.
func (r *Router) EmitToPeer(so *object.SharedObject, event string, data any) {
	r.mu.Lock()
	if r.suppressEmit {
		r.mu.Unlock()
		return
	}
	meta, ok := r.objects[so.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !meta.shareConfirmed {
		meta.emitQueue = append(meta.emitQueue, queuedEmit{event: event, data: data})
		r.mu.Unlock()
		return
	}
	peerName := meta.peer
	r.mu.Unlock()

	p, ok := r.peer(peerName)
	if !ok {
		return
	}
	r.postEmit(p, so.ID(), event, data)
}

func (r *Router) postEmit(p *peerState, soID float64, event string, data any) {
	payload, err := marshalData(data)
	if err != nil {
		txlog.Logger().Warn("router: failed to marshal emit payload", zap.String("event", event), zap.Error(err))
		return
	}
	env := envelope{Type: msgSharedObjectEmit, SharedObjectID: soID, EventName: event, Data: payload}
	raw, err := encodeEnvelope(env)
	if err != nil {
		return
	}
	if err := p.transport.Post(context.Background(), raw); err != nil {
		txlog.Logger().Warn("router: failed to post sharedObjectEmit", zap.String("peer", p.name), zap.Error(err))
	}
}
