package property

import "encoding/binary"

// Endian selects the byte order Value uses when a reader asks for an
// integer interpretation of a copied value.
type Endian int

const (
	// BigEndian matches wire (network) byte order.
	BigEndian Endian = iota
	// LittleEndian is used for values computed on the property bus
	// (counts, microseconds) for consumer convenience.
	LittleEndian
)

// Value is a per-packet attribute slot. Set stores a view into another
// buffer (typically the packet payload); Cpy copies bytes into an
// owned, reusable buffer and remembers their endianness. Slots are
// reused across packets by Reset, never reallocated.
type Value struct {
	view   []byte
	owned  []byte
	length int
	endian Endian
	isSet  bool
}

func (v *Value) reset() {
	v.view = nil
	v.owned = v.owned[:0]
	v.length = 0
	v.isSet = false
}

// Set stores a view over b without copying. b must remain valid for the
// lifetime of the current packet (e.g. a Payload.Retain slice).
func (v *Value) Set(b []byte) {
	v.view = b
	v.length = len(b)
	v.isSet = true
}

// Cpy copies b into the value's owned buffer and records its endianness.
func (v *Value) Cpy(b []byte, endian Endian) {
	v.owned = append(v.owned[:0], b...)
	v.length = len(b)
	v.endian = endian
	v.view = nil
	v.isSet = true
}

// IsSet reports whether the slot was written this packet.
func (v *Value) IsSet() bool {
	return v.isSet
}

// Bytes returns the raw bytes backing this value, regardless of how they
// were written.
func (v *Value) Bytes() []byte {
	if v.view != nil {
		return v.view
	}
	return v.owned[:v.length]
}

// Uint16 interprets the value's bytes as a 16-bit integer in the
// endianness recorded by the last Cpy call (BigEndian if the value was
// only ever Set, matching wire order).
func (v *Value) Uint16() uint16 {
	b := v.Bytes()
	if len(b) < 2 {
		return 0
	}
	if v.endian == LittleEndian {
		return binary.LittleEndian.Uint16(b)
	}
	return binary.BigEndian.Uint16(b)
}

// Uint32 interprets the value's bytes as a 32-bit integer.
func (v *Value) Uint32() uint32 {
	b := v.Bytes()
	if len(b) < 4 {
		return 0
	}
	if v.endian == LittleEndian {
		return binary.LittleEndian.Uint32(b)
	}
	return binary.BigEndian.Uint32(b)
}

// Uint64 interprets the value's bytes as a 64-bit integer.
func (v *Value) Uint64() uint64 {
	b := v.Bytes()
	if len(b) < 8 {
		return 0
	}
	if v.endian == LittleEndian {
		return binary.LittleEndian.Uint64(b)
	}
	return binary.BigEndian.Uint64(b)
}

// Byte returns the first byte, or 0 if unset.
func (v *Value) Byte() byte {
	b := v.Bytes()
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
