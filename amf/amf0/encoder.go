package amf0

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Encode serializes v into its AMF0 form.
// Objects and ECMA arrays are written in pair order, so encoding the result of
// Decode reproduces the original bytes. A map[string]interface{} is accepted
// for convenience and encoded as an object with its keys sorted.
func Encode(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case float64:
		return encodeNumber(v), nil
	case int:
		return encodeNumber(float64(v)), nil
	case bool:
		return encodeBoolean(v), nil
	case string:
		return encodeString(v), nil
	case Object:
		return encodePairs(TypeObject, v)
	case ECMAArray:
		return encodeECMAArray(v)
	case StrictArray:
		return encodeStrictArray(v)
	case map[string]interface{}:
		return encodePairs(TypeObject, sortedPairs(v))
	case nil:
		return []byte{TypeNull}, nil
	case Undefined:
		return []byte{TypeUndefined}, nil
	case Reference:
		ref := make([]byte, 3)
		ref[0] = TypeReference
		binary.BigEndian.PutUint16(ref[1:], uint16(v))
		return ref, nil
	case time.Time:
		return encodeDate(v), nil
	case XMLDocument:
		return encodeXMLDocument(v), nil
	default:
		return nil, errors.Errorf("amf0: cannot encode type %T", v)
	}
}

// EncodeAll serializes values in order into one buffer. Command and data
// message bodies are built this way.
func EncodeAll(values ...interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, v := range values {
		b, err := Encode(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func encodeNumber(number float64) []byte {
	var buf [9]byte
	buf[0] = TypeNumber
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(number))
	return buf[:]
}

func encodeBoolean(b bool) []byte {
	var buf [2]byte
	buf[0] = TypeBoolean
	if b {
		buf[1] = 1
	}
	return buf[:]
}

func encodeString(s string) []byte {
	if len(s) <= 65535 {
		// byte 0 => marker, bytes 1-2 => length, bytes 3-end => content
		str := make([]byte, 3+len(s))
		str[0] = TypeString
		binary.BigEndian.PutUint16(str[1:3], uint16(len(s)))
		copy(str[3:], s)
		return str
	}
	// Longer strings use the long string form with a 4 byte length.
	str := make([]byte, 5+len(s))
	str[0] = TypeLongString
	binary.BigEndian.PutUint32(str[1:5], uint32(len(s)))
	copy(str[5:], s)
	return str
}

// encodeKey writes an object key, which is framed like a short string but
// carries no type marker.
func encodeKey(buf *bytes.Buffer, key string) {
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(key)))
	buf.Write(length[:])
	buf.WriteString(key)
}

func encodePairs(marker byte, pairs []Pair) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(marker)
	for _, p := range pairs {
		encodeKey(buf, p.Key)
		val, err := Encode(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.Write([]byte{0x00, 0x00, TypeObjectEnd})
	return buf.Bytes(), nil
}

func encodeECMAArray(a ECMAArray) ([]byte, error) {
	body, err := encodePairs(TypeECMAArray, a)
	if err != nil {
		return nil, err
	}
	// Splice the associative count in after the marker.
	out := make([]byte, 0, len(body)+4)
	out = append(out, TypeECMAArray, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(a)))
	return append(out, body[1:]...), nil
}

func encodeStrictArray(a StrictArray) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(TypeStrictArray)
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(a)))
	buf.Write(count[:])
	for _, v := range a {
		b, err := Encode(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func encodeDate(t time.Time) []byte {
	var buf [11]byte
	buf[0] = TypeDate
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(float64(t.UnixMilli())))
	// Last 2 bytes are the time zone, which stays 0 as defined by the spec.
	return buf[:]
}

func encodeXMLDocument(x XMLDocument) []byte {
	buf := make([]byte, 5+len(x))
	buf[0] = TypeXMLDocument
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(x)))
	copy(buf[5:], x)
	return buf
}

func sortedPairs(m map[string]interface{}) []Pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]Pair, 0, len(m))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: m[k]})
	}
	return pairs
}
