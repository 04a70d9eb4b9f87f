package amf3

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Encoder encodes AMF3 values. It keeps the string reference table for one
// message, so repeated strings within a message are written as back-references.
type Encoder struct {
	strings []string
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode serializes v into its AMF3 form.
// Signed or unsigned ints outside [MinInt, MaxInt] are encoded as doubles.
func (e *Encoder) Encode(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return []byte{TypeNull}, nil
	case Undefined:
		return []byte{TypeUndefined}, nil
	case bool:
		if v {
			return []byte{TypeTrue}, nil
		}
		return []byte{TypeFalse}, nil
	case int:
		return e.encodeInt(v), nil
	case uint:
		return e.encodeInt(int(v)), nil
	case float64:
		return encodeDouble(v), nil
	case string:
		return e.encodeString(v), nil
	case XMLDocument:
		buf := append([]byte{TypeXml}, appendU29(nil, uint32(len(v))<<1|1)...)
		return append(buf, v...), nil
	case time.Time:
		return e.encodeDate(v), nil
	case []byte:
		buf := append([]byte{TypeByteArray}, appendU29(nil, uint32(len(v))<<1|1)...)
		return append(buf, v...), nil
	case []interface{}:
		return e.encodeArray(v)
	default:
		return nil, errors.Errorf("amf3: cannot encode type %T", v)
	}
}

// appendU29 appends the variable-length 29-bit form of i to buf.
// The high bit of each of the first 3 bytes flags a continuation.
func appendU29(buf []byte, i uint32) []byte {
	i &= 0x1FFFFFFF
	switch {
	case i <= 0x7F:
		return append(buf, byte(i))
	case i <= 0x3FFF:
		return append(buf, byte(i>>7|0x80), byte(i&0x7F))
	case i <= 0x1FFFFF:
		return append(buf, byte(i>>14|0x80), byte(i>>7|0x80), byte(i&0x7F))
	default:
		// The 4 byte form uses all 8 bits of the final byte.
		return append(buf, byte(i>>22|0x80), byte(i>>15|0x80), byte(i>>8|0x80), byte(i))
	}
}

func (e *Encoder) encodeInt(i int) []byte {
	if i < MinInt || i > MaxInt {
		return encodeDouble(float64(i))
	}
	return appendU29([]byte{TypeInteger}, uint32(i))
}

func encodeDouble(f float64) []byte {
	var buf [9]byte
	buf[0] = TypeDouble
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return buf[:]
}

func (e *Encoder) encodeString(s string) []byte {
	return e.appendString([]byte{TypeString}, s)
}

// appendString writes the reference-or-value form shared by strings and array
// keys: a previously written string becomes a table index with the low bit
// clear, anything else is written inline and entered into the table.
func (e *Encoder) appendString(buf []byte, s string) []byte {
	if s == "" {
		return append(buf, UTF8Empty)
	}
	for i, seen := range e.strings {
		if seen == s {
			return appendU29(buf, uint32(i)<<1)
		}
	}
	e.strings = append(e.strings, s)
	buf = appendU29(buf, uint32(len(s))<<1|1)
	return append(buf, s...)
}

func (e *Encoder) encodeDate(t time.Time) []byte {
	buf := appendU29([]byte{TypeDate}, 1) // 1 marks an inline value
	var millis [8]byte
	binary.BigEndian.PutUint64(millis[:], math.Float64bits(float64(t.UnixMilli())))
	return append(buf, millis[:]...)
}

func (e *Encoder) encodeArray(values []interface{}) ([]byte, error) {
	buf := appendU29([]byte{TypeArray}, uint32(len(values))<<1|1)
	buf = append(buf, UTF8Empty) // no associative section
	for _, v := range values {
		b, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}
