package threadx

import (
	"reflect"

	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/typeid"
)

// SyncPointObject is the concrete SharedObject the demo commands in this
// module exercise: two numeric fields, two string fields, a
// boolean flag, and a counter, enough surface to drive every property kind
// the buffer package knows how to place.
type SyncPointObject struct {
	*object.SharedObject
}

func syncPointTypeID() uint32 {
	id, err := typeid.Encode("SYNP")
	if err != nil {
		panic(err)
	}
	return uint32(id)
}

func syncPointSchema() *buffer.Schema {
	return buffer.SchemaFor(reflect.TypeOf(SyncPointObject{}), func() *buffer.Schema {
		return buffer.BuildSchema("SYNP", syncPointTypeID(), []buffer.PropertyDef{
			{Name: "numProp1", Kind: buffer.KindNumber},
			{Name: "numProp2", Kind: buffer.KindNumber},
			{Name: "stringProp1", Kind: buffer.KindString, AllowUndefined: true},
			{Name: "stringProp2", Kind: buffer.KindString, AllowUndefined: true},
			{Name: "flag", Kind: buffer.KindBool},
			{Name: "counter", Kind: buffer.KindInt32},
		})
	})
}

// NewSyncPointObject allocates a fresh backing region sized for
// SyncPointObject and returns the object view over it, registered as
// myWorker's and driven by scheduler/facade the same way every SharedObject
// is.
func NewSyncPointObject(myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade, hooks object.Hooks) (*SyncPointObject, error) {
	buf, err := buffer.Allocate(syncPointSchema(), generateLocalUniqueID())
	if err != nil {
		return nil, err
	}
	return &SyncPointObject{SharedObject: object.New(buf, myWorker, scheduler, facade, hooks)}, nil
}

// OpenSyncPointObject wraps an already-populated region (typically handed
// over by a peer's shareObjects message) as a SyncPointObject view.
func OpenSyncPointObject(region buffer.Region, myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade, hooks object.Hooks) (*object.SharedObject, error) {
	buf, err := buffer.Open(syncPointSchema(), region)
	if err != nil {
		return nil, err
	}
	return object.New(buf, myWorker, scheduler, facade, hooks), nil
}

func (s *SyncPointObject) NumProp1() float64 {
	v, _ := s.Get("numProp1").(float64)
	return v
}
func (s *SyncPointObject) SetNumProp1(v float64) error { return s.Set("numProp1", v) }

func (s *SyncPointObject) NumProp2() float64 {
	v, _ := s.Get("numProp2").(float64)
	return v
}
func (s *SyncPointObject) SetNumProp2(v float64) error { return s.Set("numProp2", v) }

// StringProp1 returns the current value, or "" if undefined.
func (s *SyncPointObject) StringProp1() string {
	v, _ := s.Get("stringProp1").(string)
	return v
}
func (s *SyncPointObject) SetStringProp1(v string) error { return s.Set("stringProp1", v) }

// StringProp2 returns the current value, or "" if undefined.
func (s *SyncPointObject) StringProp2() string {
	v, _ := s.Get("stringProp2").(string)
	return v
}
func (s *SyncPointObject) SetStringProp2(v string) error { return s.Set("stringProp2", v) }

func (s *SyncPointObject) Flag() bool {
	v, _ := s.Get("flag").(bool)
	return v
}
func (s *SyncPointObject) SetFlag(v bool) error { return s.Set("flag", v) }

func (s *SyncPointObject) Counter() int32 {
	v, _ := s.Get("counter").(int32)
	return v
}
func (s *SyncPointObject) SetCounter(v int32) error { return s.Set("counter", v) }
