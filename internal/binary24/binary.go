// Package binary24 reads and writes the 24-bit integer fields used throughout
// the RTMP chunk stream and FLV tag headers, in the style of encoding/binary.
package binary24

var BigEndian bigEndian

var LittleEndian littleEndian

type bigEndian struct{}

func (bigEndian) Uint24(b []byte) uint32 {
	return uint32(b[2]) | uint32(b[1])<<8 | uint32(b[0])<<16
}

func (bigEndian) PutUint24(b []byte, v uint32) {
	_ = b[2] // early bounds check to guarantee safety of writes below
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Int24 interprets b as a signed 24-bit big-endian integer. FLV composition
// time offsets are stored in this form.
func (bigEndian) Int24(b []byte) int32 {
	v := int32(b[2]) | int32(b[1])<<8 | int32(b[0])<<16
	if v&0x800000 != 0 {
		v -= 0x1000000
	}
	return v
}

func (bigEndian) PutInt24(b []byte, v int32) {
	BigEndian.PutUint24(b, uint32(v)&0xFFFFFF)
}

type littleEndian struct{}

func (littleEndian) Uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func (littleEndian) PutUint24(b []byte, v uint32) {
	_ = b[2] // early bounds check to guarantee safety of writes below
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
