package object

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/txlog"
)

// Hooks are the overridable callbacks a concrete SharedObject subtype may
// implement. BaseHooks gives every subtype a no-op default so it only
// needs to override the one it cares about.
type Hooks interface {
	OnPropertyChange(name string, newValue, oldValue any)
	OnDestroy()
}

// BaseHooks is embedded by concrete subtypes that don't need to override
// every hook.
type BaseHooks struct{}

func (BaseHooks) OnPropertyChange(name string, newValue, oldValue any) {}
func (BaseHooks) OnDestroy()                                           {}

// RouterFacade is the subset of Worker Router behavior a SharedObject
// needs to reach back into: asking for itself to be forgotten silently
// during teardown, and forwarding a local emit to its peer. Router
// implements this; object never imports router, avoiding an import cycle.
type RouterFacade interface {
	ForgetSilently(so *SharedObject)
	EmitToPeer(so *SharedObject, event string, data any)
}

// SharedObject is an in-worker projection over a buffer.BufferStruct. It
// caches property values locally (curProps), batches local writes
// (mutations), and runs a perpetual lock→reconcile→wait cycle that adopts
// peer writes and flushes its own.
type SharedObject struct {
	mu sync.Mutex

	buf      *buffer.BufferStruct
	schema   *buffer.Schema
	myWorker uint32
	scheduler Scheduler
	router    RouterFacade
	hooks     Hooks

	curProps  map[string]any
	mutations map[string]bool

	mutationsQueued bool
	initialized     bool
	destroying      bool
	destroyed       bool
	waitGen         uint64

	idVal     float64
	typeIDVal uint32

	emitter *emitter
}

// New constructs a SharedObject over buf, seeding curProps from buf's
// current (just-allocated or just-received) values, and starts its
// mutation cycle. hooks may be nil, in which case BaseHooks semantics
// apply (no overrides).
func New(buf *buffer.BufferStruct, myWorker uint32, scheduler Scheduler, router RouterFacade, hooks Hooks) *SharedObject {
	if hooks == nil {
		hooks = BaseHooks{}
	}
	schema := buf.Schema()
	s := &SharedObject{
		buf:       buf,
		schema:    schema,
		myWorker:  myWorker,
		scheduler: scheduler,
		router:    router,
		hooks:     hooks,
		curProps:  make(map[string]any, len(schema.Properties)),
		mutations: make(map[string]bool),
		idVal:     buf.UniqueID(),
		typeIDVal: buf.TypeID(),
		emitter:   newEmitter(),
	}
	for i := range schema.Properties {
		pd := &schema.Properties[i]
		s.curProps[pd.Name] = s.readProperty(pd)
	}
	s.initialized = true
	s.queueMutations()
	return s
}

// ID returns the object's unique id, stable for its lifetime.
func (s *SharedObject) ID() float64 { return s.idVal }

// TypeID returns the object's packed type tag.
func (s *SharedObject) TypeID() uint32 { return s.typeIDVal }

// IsDestroyed reports whether finishDestroy has completed.
func (s *SharedObject) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Buffer returns the underlying BufferStruct, or ErrUseAfterDestroy once
// destroyed.
func (s *SharedObject) Buffer() (*buffer.BufferStruct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrUseAfterDestroy
	}
	return s.buf, nil
}

// Get returns the cached local value for a property by name.
func (s *SharedObject) Get(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curProps[name]
}

// Set stages v for property name, updates the local cache, and schedules
// a mutation cycle. Returns ErrUseAfterDestroy if called post-destruction.
func (s *SharedObject) Set(name string, v any) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrUseAfterDestroy
	}
	s.curProps[name] = v
	s.mutations[name] = true
	s.mu.Unlock()
	s.queueMutations()
	return nil
}

// On registers a local event listener.
func (s *SharedObject) On(event string, fn Listener) Subscription { return s.emitter.On(event, fn) }

// Once registers a self-removing local event listener.
func (s *SharedObject) Once(event string, fn Listener) Subscription {
	return s.emitter.Once(event, fn)
}

// Off removes a listener previously returned by On/Once.
func (s *SharedObject) Off(sub Subscription) { s.emitter.Off(sub) }

// EmitOptions configures Emit.
type EmitOptions struct {
	// LocalOnly suppresses forwarding to the peer (used for the
	// beforeDestroy/afterDestroy lifecycle events). Inbound remote emits
	// replayed locally are kept from echoing by the router instead.
	LocalOnly bool
}

// Emit fires event for every local listener, and — unless LocalOnly — asks
// the router to forward it to this object's peer.
func (s *SharedObject) Emit(event string, data any, opts ...EmitOptions) {
	var o EmitOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if !o.LocalOnly && s.router != nil {
		s.router.EmitToPeer(s, event, data)
	}
	s.emitter.fire(s, event, data)
}

// Flush synchronously drains one mutation cycle, acquiring the lock
// directly rather than waiting for the scheduler to get to it.
func (s *SharedObject) Flush() error {
	return s.buf.Lock(func() error {
		return s.executeMutationsLocked()
	})
}

// Destroy is idempotent. It emits beforeDestroy locally, invokes the
// subclass OnDestroy hook, and schedules one final mutation cycle; actual
// teardown completes asynchronously in finishDestroy.
func (s *SharedObject) Destroy() {
	s.mu.Lock()
	if s.destroying || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroying = true
	s.mu.Unlock()

	s.Emit("beforeDestroy", nil, EmitOptions{LocalOnly: true})
	s.hooks.OnDestroy()
	s.queueMutations()
}

func (s *SharedObject) queueMutations() {
	s.mu.Lock()
	if s.mutationsQueued {
		s.mu.Unlock()
		return
	}
	s.mutationsQueued = true
	s.mu.Unlock()

	s.scheduler.Schedule(func() {
		s.mu.Lock()
		s.mutationsQueued = false
		s.mu.Unlock()
		s.runCycle()
	})
}

// runCycle acquires the lock, runs executeMutations, and — if destruction
// was requested — finishes it once the cycle's flush has landed.
func (s *SharedObject) runCycle() {
	s.buf.LockAsync(context.Background(), func() error {
		return s.executeMutationsLocked()
	})

	s.mu.Lock()
	destroying := s.destroying && !s.destroyed
	s.mu.Unlock()
	if destroying {
		s.finishDestroy()
	}
}

// executeMutationsLocked implements the central reconciliation algorithm.
// Callers must hold buf's lock (or be the constructor, before any peer
// could possibly contend).
func (s *SharedObject) executeMutationsLocked() error {
	notifyVal := s.buf.NotifyValue()
	if notifyVal != s.myWorker && s.buf.IsDirty() {
		s.processDirtyPropertiesLocked()
	}

	dirtyByLocal := s.flushLocalMutationsLocked()

	atomic.AddUint64(&s.waitGen, 1)
	gen := atomic.LoadUint64(&s.waitGen)

	var expected uint32
	if dirtyByLocal {
		s.buf.Notify(s.myWorker)
		expected = s.myWorker
	} else {
		expected = s.buf.NotifyValue()
	}

	go s.awaitNotify(gen, expected)
	return nil
}

func (s *SharedObject) processDirtyPropertiesLocked() {
	for i := range s.schema.Properties {
		pd := &s.schema.Properties[i]
		if !s.buf.IsDirty(pd.PropNum) {
			continue
		}
		newValue := s.readProperty(pd)

		s.mu.Lock()
		oldValue := s.curProps[pd.Name]
		s.curProps[pd.Name] = newValue
		delete(s.mutations, pd.Name)
		initialized := s.initialized
		s.mu.Unlock()

		if initialized {
			s.hooks.OnPropertyChange(pd.Name, newValue, oldValue)
		}
	}
	s.buf.ResetDirty()
}

func (s *SharedObject) flushLocalMutationsLocked() bool {
	s.mu.Lock()
	names := make([]string, 0, len(s.mutations))
	for name := range s.mutations {
		names = append(names, name)
	}
	s.mutations = make(map[string]bool)
	s.mu.Unlock()

	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		pd := s.schema.ByName[name]
		s.mu.Lock()
		v := s.curProps[name]
		s.mu.Unlock()
		s.writeProperty(pd, v)
	}
	return true
}

func (s *SharedObject) awaitNotify(gen uint64, expected uint32) {
	res := s.buf.WaitAsync(context.Background(), expected, 0)
	if res != buffer.WaitOK {
		return
	}
	if atomic.LoadUint64(&s.waitGen) != gen {
		return // a newer cycle superseded this wait
	}
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return
	}
	s.scheduler.Schedule(s.runCycle)
}

func (s *SharedObject) finishDestroy() {
	if s.router != nil {
		s.router.ForgetSilently(s)
	}
	s.buf.Notify()

	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()

	s.Emit("afterDestroy", nil, EmitOptions{LocalOnly: true})
	s.emitter.clear()
}

func (s *SharedObject) readProperty(pd *buffer.PropertyDescriptor) any {
	switch pd.Kind {
	case buffer.KindNumber:
		v, ok := s.buf.GetNumber(pd)
		if !ok {
			return nil
		}
		return v
	case buffer.KindInt32:
		v, ok := s.buf.GetInt32(pd)
		if !ok {
			return nil
		}
		return v
	case buffer.KindBool:
		v, ok := s.buf.GetBool(pd)
		if !ok {
			return nil
		}
		return v
	case buffer.KindString:
		v, ok, _ := s.buf.GetString(pd)
		if !ok {
			return nil
		}
		return v
	default:
		return nil
	}
}

func (s *SharedObject) writeProperty(pd *buffer.PropertyDescriptor, v any) {
	if v == nil {
		if pd.AllowUndefined {
			s.buf.SetUndefined(pd)
		}
		return
	}
	switch pd.Kind {
	case buffer.KindNumber:
		s.buf.SetNumber(pd, v.(float64))
	case buffer.KindInt32:
		s.buf.SetInt32(pd, v.(int32))
	case buffer.KindBool:
		s.buf.SetBool(pd, v.(bool))
	case buffer.KindString:
		if err := s.buf.SetString(pd, v.(string)); err != nil {
			txlog.Logger().Warn("object: string property truncated", zap.String("property", pd.Name), zap.Error(err))
		}
	}
}
