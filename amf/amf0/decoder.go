package amf0

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/calderab/rtmp/amf/amf3"
	"github.com/pkg/errors"
)

var ErrIncompleteData = errors.New("amf0: value extends past the end of the data")
var ErrDuplicateKey = errors.New("amf0: object contains a duplicate key")
var ErrUnexpectedObjectEnd = errors.New("amf0: unexpected object end marker")

// Decode reads one AMF0 value from the beginning of b and returns it along
// with the number of bytes it occupied.
// Possible return types: float64, bool, string, Object, nil, Undefined,
// Reference, ECMAArray, StrictArray, time.Time, XMLDocument. A marker of
// TypeAVMPlus escapes into AMF3 and returns whatever the AMF3 decoder yields.
func Decode(b []byte) (interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrIncompleteData
	}
	switch b[0] {
	case TypeNumber:
		if len(b) < 9 {
			return nil, 0, ErrIncompleteData
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case TypeBoolean:
		if len(b) < 2 {
			return nil, 0, ErrIncompleteData
		}
		return b[1] != 0, 2, nil
	case TypeString:
		s, n, err := decodeShortString(b[1:])
		return s, 1 + n, err
	case TypeLongString:
		s, n, err := decodeLongString(b[1:])
		return s, 1 + n, err
	case TypeObject:
		pairs, n, err := decodePairs(b[1:])
		return Object(pairs), 1 + n, err
	case TypeNull:
		return nil, 1, nil
	case TypeUndefined:
		return Undefined{}, 1, nil
	case TypeReference:
		if len(b) < 3 {
			return nil, 0, ErrIncompleteData
		}
		return Reference(binary.BigEndian.Uint16(b[1:3])), 3, nil
	case TypeECMAArray:
		// The associative count is advisory. The array still terminates on the
		// object end marker, so decode it exactly like an object.
		if len(b) < 5 {
			return nil, 0, ErrIncompleteData
		}
		pairs, n, err := decodePairs(b[5:])
		return ECMAArray(pairs), 5 + n, err
	case TypeObjectEnd:
		return nil, 0, ErrUnexpectedObjectEnd
	case TypeStrictArray:
		return decodeStrictArray(b)
	case TypeDate:
		if len(b) < 11 {
			return nil, 0, ErrIncompleteData
		}
		millis := math.Float64frombits(binary.BigEndian.Uint64(b[1:9]))
		// Trailing 2 bytes are the time zone, always zero per the spec.
		return time.UnixMilli(int64(millis)).UTC(), 11, nil
	case TypeXMLDocument:
		s, n, err := decodeLongString(b[1:])
		return XMLDocument(s), 1 + n, err
	case TypeAVMPlus:
		v, n, err := amf3.NewDecoder().Decode(b[1:])
		return v, 1 + n, err
	default:
		return nil, 0, errors.Errorf("amf0: cannot decode unsupported marker 0x%02x", b[0])
	}
}

// DecodeAll decodes consecutive AMF0 values until b is exhausted. Command and
// data message bodies are encoded as such a sequence.
func DecodeAll(b []byte) ([]interface{}, error) {
	var values []interface{}
	for len(b) > 0 {
		v, n, err := Decode(b)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		b = b[n:]
	}
	return values, nil
}

func decodeShortString(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, ErrIncompleteData
	}
	length := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+length {
		return "", 0, ErrIncompleteData
	}
	return string(b[2 : 2+length]), 2 + length, nil
}

func decodeLongString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, ErrIncompleteData
	}
	length := int(binary.BigEndian.Uint32(b))
	if len(b) < 4+length {
		return "", 0, ErrIncompleteData
	}
	return string(b[4 : 4+length]), 4 + length, nil
}

// decodePairs reads key/value pairs up to and including the object end
// marker (0x00 0x00 0x09).
func decodePairs(b []byte) ([]Pair, int, error) {
	var pairs []Pair
	seen := make(map[string]struct{})
	n := 0
	for {
		key, kn, err := decodeShortString(b[n:])
		if err != nil {
			return nil, 0, err
		}
		if key == "" {
			if len(b) <= n+kn {
				return nil, 0, ErrIncompleteData
			}
			if b[n+kn] == TypeObjectEnd {
				return pairs, n + kn + 1, nil
			}
		}
		if _, dup := seen[key]; dup {
			return nil, 0, ErrDuplicateKey
		}
		seen[key] = struct{}{}
		val, vn, err := Decode(b[n+kn:])
		if err != nil {
			return nil, 0, err
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
		n += kn + vn
	}
}

func decodeStrictArray(b []byte) (StrictArray, int, error) {
	if len(b) < 5 {
		return nil, 0, ErrIncompleteData
	}
	count := binary.BigEndian.Uint32(b[1:5])
	// Every element takes at least one byte, so a count beyond the remaining
	// input is invalid. Checked before the allocation so a forged count
	// cannot size it.
	if uint64(count) > uint64(len(b)-5) {
		return nil, 0, ErrIncompleteData
	}
	values := make(StrictArray, 0, count)
	n := 5
	for i := uint32(0); i < count; i++ {
		v, vn, err := Decode(b[n:])
		if err != nil {
			return nil, 0, err
		}
		values = append(values, v)
		n += vn
	}
	return values, n, nil
}
