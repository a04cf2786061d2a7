package buffer

import (
	"reflect"
	"sync"
)

// Kind identifies the wire representation of a property.
type Kind int

const (
	KindNumber Kind = iota
	KindInt32
	KindBool
	KindString
)

const stringSlotSize = 512 // 2-byte length + up to 255 uint16 code units, rounded up

// PropertyDescriptor is one entry in a concrete BufferStruct type's
// declared, ordered property list.
type PropertyDescriptor struct {
	PropNum        int
	Name           string
	Kind           Kind
	ByteOffset     int
	ByteSize       int
	AllowUndefined bool
}

// Schema is the full precomputed property layout for one concrete
// BufferStruct type, computed once on first construction.
type Schema struct {
	TypeTag    string
	TypeID     uint32
	Properties []PropertyDescriptor
	ByName     map[string]*PropertyDescriptor
	TotalSize  int
}

// PropertyDef is what a concrete type declares, in order, to build its Schema.
type PropertyDef struct {
	Name           string
	Kind           Kind
	AllowUndefined bool
}

var (
	registryMu sync.Mutex
	registry   = map[reflect.Type]*Schema{}
)

// BuildSchema computes byte offsets/sizes/prop numbers for an ordered list
// of property definitions, per the alignment rules: strings align to 2
// bytes (and occupy a fixed 512-byte slot), int32/bool align to 4 bytes,
// numbers align to 8 bytes. The final size is rounded up to a multiple of
// 8. Property numbers are assigned in declaration order.
func BuildSchema(typeTag string, typeID uint32, defs []PropertyDef) *Schema {
	s := &Schema{
		TypeTag: typeTag,
		TypeID:  typeID,
		ByName:  make(map[string]*PropertyDescriptor, len(defs)),
	}
	offset := propertyRegion
	for i, d := range defs {
		var size, align int
		switch d.Kind {
		case KindString:
			align, size = 2, stringSlotSize
		case KindInt32, KindBool:
			align, size = 4, 4
		case KindNumber:
			align, size = 8, 8
		}
		offset = alignUp(offset, align)
		pd := PropertyDescriptor{
			PropNum:        i,
			Name:           d.Name,
			Kind:           d.Kind,
			ByteOffset:     offset,
			ByteSize:       size,
			AllowUndefined: d.AllowUndefined,
		}
		s.Properties = append(s.Properties, pd)
		offset += size
	}
	s.TotalSize = alignUp(offset, 8)
	for i := range s.Properties {
		s.ByName[s.Properties[i].Name] = &s.Properties[i]
	}
	return s
}

// SchemaFor returns the memoized Schema for a concrete BufferStruct Go
// type, building it on first use via build. Concurrent callers for the
// same type are serialized; build must be deterministic and cheap.
func SchemaFor(t reflect.Type, build func() *Schema) *Schema {
	registryMu.Lock()
	defer registryMu.Unlock()
	if s, ok := registry[t]; ok {
		return s
	}
	s := build()
	registry[t] = s
	return s
}

func alignUp(n, align int) int {
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}
