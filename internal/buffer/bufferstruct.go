package buffer

import "math"

// BufferStruct is a typed view over a Region: a fixed 40-byte header
// followed by a schema-derived property layout. Multiple BufferStruct
// values (in the same or different workers) can view the same Region;
// each view carries its own random lock id, so distinct views contend for
// the same lock word as distinct holders.
type BufferStruct struct {
	region   Region
	schema   *Schema
	lockID   uint32
	spinLock bool
}

// Option configures a BufferStruct at construction.
type Option func(*BufferStruct)

// WithSpinLock makes Lock/LockAsync busy-spin on compareExchange instead
// of parking on the futex/cond wait channel. Intended for contexts that
// must never block, e.g. a UI render loop; only tolerable for short
// critical sections since it burns CPU while contended.
func WithSpinLock() Option {
	return func(b *BufferStruct) { b.spinLock = true }
}

// New initializes region (already sized to schema) as a fresh struct: it
// stamps the type id, stores uniqueID, marks every nullable property
// undefined, and returns the resulting BufferStruct. Allocate creates the
// region as well.
func New(schema *Schema, region Region, uniqueID float64, opts ...Option) *BufferStruct {
	b := &BufferStruct{region: region, schema: schema, lockID: newLockID()}
	for _, opt := range opts {
		opt(b)
	}
	h := header{region}
	h.setTypeID(schema.TypeID)
	h.setUniqueID(uniqueID)
	for i := range schema.Properties {
		if schema.Properties[i].AllowUndefined {
			h.setUndefinedBit(schema.Properties[i].PropNum, true)
		}
	}
	return b
}

// Open constructs a view over an existing region, verifying its stamped
// type id matches schema and that its length is sane.
func Open(schema *Schema, region Region, opts ...Option) (*BufferStruct, error) {
	buf := region.Bytes()
	if len(buf) < schema.TotalSize || len(buf)%8 != 0 {
		return nil, ErrBufferTooSmall
	}
	h := header{region}
	if h.typeID() != schema.TypeID {
		return nil, ErrTypeIDMismatch
	}
	b := &BufferStruct{region: region, schema: schema, lockID: newLockID()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// ExtractTypeID returns the header's type id word for buf, or 0 if buf is
// too short or misaligned to be a valid BufferStruct region. It performs
// no validity check on the returned id beyond the size check.
func ExtractTypeID(buf []byte) uint32 {
	if len(buf) < HeaderSize || len(buf)%8 != 0 {
		return 0
	}
	return uint32(buf[offTypeID]) | uint32(buf[offTypeID+1])<<8 |
		uint32(buf[offTypeID+2])<<16 | uint32(buf[offTypeID+3])<<24
}

// ExtractUniqueID returns the header's unique id for buf, or 0 if buf is
// too short to be a valid BufferStruct region.
func ExtractUniqueID(buf []byte) float64 {
	if len(buf) < HeaderSize || len(buf)%8 != 0 {
		return 0
	}
	return math.Float64frombits(
		uint64(buf[offUniqueID]) | uint64(buf[offUniqueID+1])<<8 |
			uint64(buf[offUniqueID+2])<<16 | uint64(buf[offUniqueID+3])<<24 |
			uint64(buf[offUniqueID+4])<<32 | uint64(buf[offUniqueID+5])<<40 |
			uint64(buf[offUniqueID+6])<<48 | uint64(buf[offUniqueID+7])<<56)
}

// Schema returns the property schema backing this view.
func (b *BufferStruct) Schema() *Schema { return b.schema }

// UniqueID returns the header's unique id, assigned at construction and
// immutable thereafter.
func (b *BufferStruct) UniqueID() float64 { return header{b.region}.uniqueID() }

// TypeID returns the header's type id word, immutable after construction.
func (b *BufferStruct) TypeID() uint32 { return header{b.region}.typeID() }

// Bytes exposes the raw backing region, e.g. to hand off in a shareObjects
// control message.
func (b *BufferStruct) Bytes() []byte { return b.region.Bytes() }

// Region exposes the backing Region itself, e.g. to publish for a same-
// process peer to take by reference instead of by serialized copy.
func (b *BufferStruct) Region() Region { return b.region }

// Close releases the underlying region's OS resources.
func (b *BufferStruct) Close() error { return b.region.Close() }
