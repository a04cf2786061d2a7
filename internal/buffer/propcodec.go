package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

const maxStringCodeUnits = 255

// GetNumber reads the float64 slot at pd's offset.
func (b *BufferStruct) GetNumber(pd *PropertyDescriptor) (float64, bool) {
	if pd.AllowUndefined && (header{b.region}).isUndefinedBit(pd.PropNum) {
		return 0, false
	}
	bits := b.region.Load64(pd.ByteOffset)
	return math.Float64frombits(bits), true
}

// SetNumber writes v to pd's slot. Writing an unchanged value does not set
// the dirty bit.
func (b *BufferStruct) SetNumber(pd *PropertyDescriptor, v float64) {
	h := header{b.region}
	wasUndefined := pd.AllowUndefined && h.isUndefinedBit(pd.PropNum)
	cur := math.Float64frombits(b.region.Load64(pd.ByteOffset))
	if !wasUndefined && cur == v {
		return
	}
	b.region.Store64(pd.ByteOffset, math.Float64bits(v))
	if pd.AllowUndefined {
		h.setUndefinedBit(pd.PropNum, false)
	}
	h.setDirtyBit(pd.PropNum)
}

// SetUndefined marks pd undefined. A no-op if already undefined. Valid
// only for properties declared AllowUndefined.
func (b *BufferStruct) SetUndefined(pd *PropertyDescriptor) {
	b.setUndefined(pd)
}

// GetInt32 reads the int32 slot at pd's offset.
func (b *BufferStruct) GetInt32(pd *PropertyDescriptor) (int32, bool) {
	if pd.AllowUndefined && (header{b.region}).isUndefinedBit(pd.PropNum) {
		return 0, false
	}
	return int32(b.region.Load32(pd.ByteOffset)), true
}

// SetInt32 writes v to pd's slot, short-circuiting on equality.
func (b *BufferStruct) SetInt32(pd *PropertyDescriptor, v int32) {
	h := header{b.region}
	wasUndefined := pd.AllowUndefined && h.isUndefinedBit(pd.PropNum)
	if !wasUndefined && int32(b.region.Load32(pd.ByteOffset)) == v {
		return
	}
	b.region.Store32(pd.ByteOffset, uint32(v))
	if pd.AllowUndefined {
		h.setUndefinedBit(pd.PropNum, false)
	}
	h.setDirtyBit(pd.PropNum)
}

// GetBool reads the boolean slot (stored as int32 0/1) at pd's offset.
func (b *BufferStruct) GetBool(pd *PropertyDescriptor) (bool, bool) {
	if pd.AllowUndefined && (header{b.region}).isUndefinedBit(pd.PropNum) {
		return false, false
	}
	return b.region.Load32(pd.ByteOffset) != 0, true
}

// SetBool writes v to pd's slot, short-circuiting on equality.
func (b *BufferStruct) SetBool(pd *PropertyDescriptor, v bool) {
	h := header{b.region}
	wasUndefined := pd.AllowUndefined && h.isUndefinedBit(pd.PropNum)
	want := uint32(0)
	if v {
		want = 1
	}
	if !wasUndefined && b.region.Load32(pd.ByteOffset) == want {
		return
	}
	b.region.Store32(pd.ByteOffset, want)
	if pd.AllowUndefined {
		h.setUndefinedBit(pd.PropNum, false)
	}
	h.setDirtyBit(pd.PropNum)
}

// GetString decodes the length-prefixed UTF-16 slot at pd's offset. It
// panics-equivalent (returns an error) if the stored length exceeds 255,
// which must never occur on writes this package made itself.
func (b *BufferStruct) GetString(pd *PropertyDescriptor) (string, bool, error) {
	if pd.AllowUndefined && (header{b.region}).isUndefinedBit(pd.PropNum) {
		return "", false, nil
	}
	raw := b.region.Bytes()[pd.ByteOffset : pd.ByteOffset+pd.ByteSize]
	length := binary.LittleEndian.Uint16(raw[0:2])
	if int(length) > maxStringCodeUnits {
		return "", true, fmt.Errorf("buffer: stored string length %d exceeds %d", length, maxStringCodeUnits)
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2+i*2 : 4+i*2])
	}
	return string(utf16.Decode(units)), true, nil
}

// SetString encodes v as UTF-16 code units into pd's slot, truncating to
// 255 code units. Returns ErrStringTooLong (soft) when truncation
// occurred, so callers can log the warning the core requires without this
// package importing a logger itself.
func (b *BufferStruct) SetString(pd *PropertyDescriptor, v string) error {
	h := header{b.region}
	units := utf16.Encode([]rune(v))
	var truncated error
	if len(units) > maxStringCodeUnits {
		units = units[:maxStringCodeUnits]
		truncated = ErrStringTooLong
	}

	wasUndefined := pd.AllowUndefined && h.isUndefinedBit(pd.PropNum)
	if !wasUndefined {
		if cur, _, err := b.GetString(pd); err == nil && cur == string(utf16.Decode(units)) {
			return truncated
		}
	}

	raw := b.region.Bytes()[pd.ByteOffset : pd.ByteOffset+pd.ByteSize]
	binary.LittleEndian.PutUint16(raw[0:2], uint16(len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[2+i*2:4+i*2], u)
	}
	if pd.AllowUndefined {
		h.setUndefinedBit(pd.PropNum, false)
	}
	h.setDirtyBit(pd.PropNum)
	return truncated
}

func (b *BufferStruct) setUndefined(pd *PropertyDescriptor) {
	h := header{b.region}
	if h.isUndefinedBit(pd.PropNum) {
		return
	}
	h.setUndefinedBit(pd.PropNum, true)
	h.setDirtyBit(pd.PropNum)
}
