package router

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/transport"
	"github.com/lightning-js/threadx/internal/txlog"
)

func (r *Router) receiveLoop(p *peerState) {
	defer r.wg.Done()
	for raw := range p.transport.Messages() {
		env, err := decodeEnvelope(raw)
		if err != nil {
			txlog.Logger().Warn("router: dropping malformed frame", zap.String("peer", p.name), zap.Error(err))
			continue
		}
		r.dispatch(p, env)
	}
	r.rejectPendingForClosedPeer(p.name)
}

func (r *Router) dispatch(p *peerState, env envelope) {
	ctx := context.Background()

	switch env.Type {
	case msgReady:
		p.markReady()
		return
	case msgShareObjects:
		r.handleShareObjects(p, env)
		return
	case msgForgetObjects:
		r.handleForgetObjects(env)
		return
	case msgSharedObjectEmit:
		r.handleSharedObjectEmit(env)
		return
	case msgResponse:
		r.handleResponse(env)
		return
	case msgClose:
		r.handleClose(p, env)
		return
	}

	// User message: pass to onMessage, reflect its result back as a
	// response if the sender is awaiting one.
	var payload any
	if len(env.Data) > 0 {
		if err := unmarshalInto(env.Data, &payload); err != nil {
			txlog.Logger().Warn("router: malformed user message payload", zap.Error(err))
			return
		}
	}

	var (
		result   any
		handleEr error
	)
	if r.opts.OnMessage != nil {
		result, handleEr = r.opts.OnMessage(ctx, p.name, payload)
	}

	if env.AsyncMsgID != nil {
		r.reply(p, *env.AsyncMsgID, result, handleEr)
	}
}

func (r *Router) reply(p *peerState, asyncMsgID int64, result any, handleErr error) {
	resp := envelope{Type: msgResponse, AsyncMsgID: &asyncMsgID}
	if handleErr != nil {
		resp.Error = true
		data, _ := marshalData(handleErr.Error())
		resp.Data = data
	} else {
		data, err := marshalData(result)
		if err != nil {
			resp.Error = true
			data, _ = marshalData(err.Error())
		}
		resp.Data = data
	}
	raw, err := encodeEnvelope(resp)
	if err != nil {
		txlog.Logger().Warn("router: failed to encode response", zap.Error(err))
		return
	}
	if err := p.transport.Post(context.Background(), raw); err != nil {
		txlog.Logger().Warn("router: failed to post response", zap.Error(err))
	}
}

func (r *Router) handleResponse(env envelope) {
	if env.AsyncMsgID == nil {
		txlog.Logger().Warn("router: response without asyncMsgId")
		return
	}
	r.mu.Lock()
	pending, ok := r.pending[*env.AsyncMsgID]
	if ok {
		delete(r.pending, *env.AsyncMsgID)
	}
	r.mu.Unlock()
	if !ok {
		txlog.Logger().Warn("router: response for unknown async id", zap.Int64("id", *env.AsyncMsgID))
		return
	}
	var err error
	if env.Error {
		msg, _ := unmarshalData[string](env.Data)
		err = fmt.Errorf("%s", msg)
	}
	pending.resultCh <- asyncResult{data: env.Data, err: err}
}

// handleClose acks the close request, then tears this worker's own side
// down: its peer transports and scheduler stop, matching spec's "close the
// current worker's global environment" contract. The ack is posted first so
// the requesting peer's CloseWorker observes a graceful close rather than
// racing this side's own transport going away.
func (r *Router) handleClose(p *peerState, env envelope) {
	if env.AsyncMsgID != nil {
		r.reply(p, *env.AsyncMsgID, nil, nil)
	}
	r.teardown()
}

// resolveSharedRegion turns an inbound shareObjects buffer into a
// buffer.Region. If the peer transport is a same-process LoopbackCarrier,
// the region it published by reference is used directly, giving both
// sides a view over the same literal memory; otherwise raw is wrapped as
// a local-only copy.
func (r *Router) resolveSharedRegion(p *peerState, raw []byte) buffer.Region {
	if carrier, ok := p.transport.(transport.LoopbackCarrier); ok {
		if v, ok := carrier.TakeLoopback(buffer.ExtractUniqueID(raw)); ok {
			if region, ok := v.(buffer.Region); ok {
				return region
			}
		}
	}
	return buffer.NewSliceRegion(raw)
}

func (r *Router) handleShareObjects(p *peerState, env envelope) {
	var handleErr error
	for _, raw := range env.Buffers {
		if r.opts.SharedObjectFactory == nil {
			handleErr = ErrFactoryFailure
			break
		}
		typeID := buffer.ExtractTypeID(raw)
		if typeID == 0 {
			handleErr = ErrFactoryFailure
			break
		}
		region := r.resolveSharedRegion(p, raw)
		so, err := r.opts.SharedObjectFactory(region, r.opts.WorkerID, r.scheduler, r)
		if err != nil || so == nil {
			handleErr = ErrFactoryFailure
			break
		}
		r.mu.Lock()
		r.objects[so.ID()] = &objectMeta{so: so, peer: p.name, shareConfirmed: true}
		r.mu.Unlock()
		if r.opts.OnObjectShared != nil {
			r.opts.OnObjectShared(so)
		}
	}
	if env.AsyncMsgID != nil {
		r.reply(p, *env.AsyncMsgID, nil, handleErr)
	}
}

func (r *Router) handleForgetObjects(env envelope) {
	for _, id := range env.ObjectIDs {
		r.mu.Lock()
		meta, ok := r.objects[id]
		if ok {
			delete(r.objects, id)
		}
		r.mu.Unlock()
		if !ok {
			continue // silently ignored per contract
		}
		if r.opts.OnBeforeObjectForgotten != nil {
			r.opts.OnBeforeObjectForgotten(meta.so)
		}
		meta.so.Destroy()
	}
}

func (r *Router) handleSharedObjectEmit(env envelope) {
	r.mu.Lock()
	meta, ok := r.objects[env.SharedObjectID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	r.suppressEmit = true
	r.mu.Unlock()

	var data any
	_ = unmarshalInto(env.Data, &data)
	meta.so.Emit(env.EventName, data)

	r.mu.Lock()
	r.suppressEmit = false
	r.mu.Unlock()
}

// rejectPendingForClosedPeer resolves every outstanding request addressed
// to peerName with ErrWorkerClosed once that peer's receive loop ends,
// rather than leaving those callers waiting forever.
func (r *Router) rejectPendingForClosedPeer(peerName string) {
	r.mu.Lock()
	var toReject []*pendingRequest
	for id, p := range r.pending {
		if p.peer == peerName {
			toReject = append(toReject, p)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()
	for _, p := range toReject {
		select {
		case p.resultCh <- asyncResult{err: ErrWorkerClosed}:
		default:
		}
	}
}

func unmarshalInto(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
