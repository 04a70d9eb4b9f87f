package amf3

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

var ErrIncompleteData = errors.New("amf3: value extends past the end of the data")
var ErrBadReference = errors.New("amf3: reference index beyond the current reference table")
var ErrUnsupportedType = errors.New("amf3: unsupported marker")

// Decoder decodes AMF3 values. The reference tables it carries are scoped to
// one message, so a fresh Decoder must be used per message body.
type Decoder struct {
	strings   []string
	complexes []interface{}
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads one AMF3 value from the beginning of b and returns it along
// with the number of bytes it occupied.
// Possible return types: Undefined, nil, bool, int, float64, string,
// XMLDocument, time.Time, []interface{}, Array, []byte.
func (d *Decoder) Decode(b []byte) (interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrIncompleteData
	}
	switch b[0] {
	case TypeUndefined:
		return Undefined{}, 1, nil
	case TypeNull:
		return nil, 1, nil
	case TypeFalse:
		return false, 1, nil
	case TypeTrue:
		return true, 1, nil
	case TypeInteger:
		u, n, err := readU29(b[1:])
		if err != nil {
			return nil, 0, err
		}
		// The integer form holds 29 significant bits; sign-extend.
		v := int(u)
		if v > MaxInt {
			v -= 1 << 29
		}
		return v, 1 + n, nil
	case TypeDouble:
		if len(b) < 9 {
			return nil, 0, ErrIncompleteData
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case TypeString:
		s, n, err := d.decodeString(b[1:])
		return s, 1 + n, err
	case TypeXmlDoc, TypeXml:
		v, n, err := d.decodeXML(b[1:])
		return v, 1 + n, err
	case TypeDate:
		v, n, err := d.decodeDate(b[1:])
		return v, 1 + n, err
	case TypeArray:
		v, n, err := d.decodeArray(b[1:])
		return v, 1 + n, err
	case TypeByteArray:
		v, n, err := d.decodeByteArray(b[1:])
		return v, 1 + n, err
	case TypeObject:
		return nil, 0, errors.Wrap(ErrUnsupportedType, "amf3: typed object")
	case TypeVectorInt, TypeVectorUint, TypeVectorDouble, TypeVectorObject:
		return nil, 0, errors.Wrap(ErrUnsupportedType, "amf3: vector")
	case TypeDictionary:
		return nil, 0, errors.Wrap(ErrUnsupportedType, "amf3: dictionary")
	default:
		return nil, 0, errors.Errorf("amf3: cannot decode unknown marker 0x%02x", b[0])
	}
}

// readU29 reads a variable-length 29-bit unsigned integer. The high bit of
// each of the first 3 bytes flags a continuation; the 4th byte, if present,
// contributes all 8 bits.
func readU29(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 3; i++ {
		if len(b) <= i {
			return 0, 0, ErrIncompleteData
		}
		v = v<<7 | uint32(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	if len(b) < 4 {
		return 0, 0, ErrIncompleteData
	}
	return v<<8 | uint32(b[3]), 4, nil
}

// decodeRef reads the U29 preceding every reference-capable value. The low
// bit selects inline (1) vs reference (0); the remaining bits carry the
// length or the reference index.
func readRef(b []byte) (value uint32, isRef bool, n int, err error) {
	u, n, err := readU29(b)
	if err != nil {
		return 0, false, 0, err
	}
	return u >> 1, u&1 == 0, n, nil
}

func (d *Decoder) decodeString(b []byte) (string, int, error) {
	length, isRef, n, err := readRef(b)
	if err != nil {
		return "", 0, err
	}
	if isRef {
		if int(length) >= len(d.strings) {
			return "", 0, ErrBadReference
		}
		return d.strings[length], n, nil
	}
	if len(b) < n+int(length) {
		return "", 0, ErrIncompleteData
	}
	s := string(b[n : n+int(length)])
	// The empty string is never entered into the table.
	if s != "" {
		d.strings = append(d.strings, s)
	}
	return s, n + int(length), nil
}

func (d *Decoder) decodeXML(b []byte) (XMLDocument, int, error) {
	length, isRef, n, err := readRef(b)
	if err != nil {
		return "", 0, err
	}
	if isRef {
		v, err := d.complexAt(length)
		if err != nil {
			return "", 0, err
		}
		x, ok := v.(XMLDocument)
		if !ok {
			return "", 0, ErrBadReference
		}
		return x, n, nil
	}
	if len(b) < n+int(length) {
		return "", 0, ErrIncompleteData
	}
	x := XMLDocument(b[n : n+int(length)])
	d.complexes = append(d.complexes, x)
	return x, n + int(length), nil
}

func (d *Decoder) decodeDate(b []byte) (time.Time, int, error) {
	ref, isRef, n, err := readRef(b)
	if err != nil {
		return time.Time{}, 0, err
	}
	if isRef {
		v, err := d.complexAt(ref)
		if err != nil {
			return time.Time{}, 0, err
		}
		t, ok := v.(time.Time)
		if !ok {
			return time.Time{}, 0, ErrBadReference
		}
		return t, n, nil
	}
	if len(b) < n+8 {
		return time.Time{}, 0, ErrIncompleteData
	}
	millis := math.Float64frombits(binary.BigEndian.Uint64(b[n : n+8]))
	t := time.UnixMilli(int64(millis)).UTC()
	d.complexes = append(d.complexes, t)
	return t, n + 8, nil
}

func (d *Decoder) decodeByteArray(b []byte) ([]byte, int, error) {
	length, isRef, n, err := readRef(b)
	if err != nil {
		return nil, 0, err
	}
	if isRef {
		v, err := d.complexAt(length)
		if err != nil {
			return nil, 0, err
		}
		ba, ok := v.([]byte)
		if !ok {
			return nil, 0, ErrBadReference
		}
		return ba, n, nil
	}
	if len(b) < n+int(length) {
		return nil, 0, ErrIncompleteData
	}
	ba := make([]byte, length)
	copy(ba, b[n:n+int(length)])
	d.complexes = append(d.complexes, ba)
	return ba, n + int(length), nil
}

func (d *Decoder) decodeArray(b []byte) (interface{}, int, error) {
	denseCount, isRef, n, err := readRef(b)
	if err != nil {
		return nil, 0, err
	}
	if isRef {
		v, err := d.complexAt(denseCount)
		return v, n, err
	}
	// Reserve the table slot up front so nested values reference correctly;
	// a reference to the array's own slot before it is complete is a forward
	// reference and fails below.
	slot := len(d.complexes)
	d.complexes = append(d.complexes, nil)

	var assoc []Pair
	for {
		key, kn, err := d.decodeString(b[n:])
		if err != nil {
			return nil, 0, err
		}
		n += kn
		if key == "" {
			break
		}
		val, vn, err := d.Decode(b[n:])
		if err != nil {
			return nil, 0, err
		}
		n += vn
		assoc = append(assoc, Pair{Key: key, Value: val})
	}

	// Dense elements take at least a marker byte each; a count beyond the
	// remaining input is invalid and must not size the allocation.
	if uint64(denseCount) > uint64(len(b)-n) {
		return nil, 0, ErrIncompleteData
	}
	dense := make([]interface{}, 0, denseCount)
	for i := uint32(0); i < denseCount; i++ {
		val, vn, err := d.Decode(b[n:])
		if err != nil {
			return nil, 0, err
		}
		n += vn
		dense = append(dense, val)
	}

	var result interface{}
	if len(assoc) == 0 {
		result = dense
	} else {
		result = Array{Associative: assoc, Dense: dense}
	}
	d.complexes[slot] = result
	return result, n, nil
}

func (d *Decoder) complexAt(index uint32) (interface{}, error) {
	if int(index) >= len(d.complexes) || d.complexes[index] == nil {
		return nil, ErrBadReference
	}
	return d.complexes[index], nil
}
