package amf3

import (
	"errors"
	"reflect"
	"testing"
)

func TestIntegerRoundTrip(t *testing.T) {
	integerTests := []struct {
		name  string
		value int
		bytes int // encoded length including marker
	}{
		{"zero", 0, 2},
		{"oneByte", 0x7F, 2},
		{"twoBytes", 0x80, 3},
		{"twoBytesMax", 0x3FFF, 3},
		{"threeBytes", 0x4000, 4},
		{"threeBytesMax", 0x1FFFFF, 4},
		{"fourBytes", 0x200000, 5},
		{"max", MaxInt, 5},
		{"min", MinInt, 5},
	}
	for _, tt := range integerTests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := NewEncoder().Encode(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if len(encoded) != tt.bytes {
				t.Errorf("expected %d encoded bytes, got %d", tt.bytes, len(encoded))
			}
			decoded, n, err := NewDecoder().Decode(encoded)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(encoded) {
				t.Errorf("expected %d bytes consumed, got %d", len(encoded), n)
			}
			if decoded.(int) != tt.value {
				t.Errorf("got %v, want %d", decoded, tt.value)
			}
		})
	}
}

func TestIntegerOutOfRangeBecomesDouble(t *testing.T) {
	encoded, err := NewEncoder().Encode(MaxInt + 1)
	if err != nil {
		t.Fatal(err)
	}
	if encoded[0] != TypeDouble {
		t.Fatalf("expected double marker, got 0x%02x", encoded[0])
	}
	decoded, _, err := NewDecoder().Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.(float64) != float64(MaxInt+1) {
		t.Errorf("got %v", decoded)
	}
}

// Encoding the same string twice within one message must produce a
// back-reference the second time, and decoding must resolve it to an equal
// value.
func TestStringReference(t *testing.T) {
	enc := NewEncoder()
	first, err := enc.Encode("streamKey")
	if err != nil {
		t.Fatal(err)
	}
	second, err := enc.Encode("streamKey")
	if err != nil {
		t.Fatal(err)
	}
	if len(second) >= len(first) {
		t.Fatalf("expected back-reference to be shorter than inline form: %d >= %d", len(second), len(first))
	}

	dec := NewDecoder()
	v1, n, err := dec.Decode(first)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(first) {
		t.Errorf("expected %d bytes consumed, got %d", len(first), n)
	}
	v2, _, err := dec.Decode(second)
	if err != nil {
		t.Fatal(err)
	}
	if v1.(string) != "streamKey" || v2.(string) != "streamKey" {
		t.Errorf("got %v and %v, want \"streamKey\" twice", v1, v2)
	}
}

func TestForwardReferenceFails(t *testing.T) {
	// A reference to string table index 0 before any string was decoded.
	data := []byte{TypeString, 0x00}
	if _, _, err := NewDecoder().Decode(data); !errors.Is(err, ErrBadReference) {
		t.Errorf("expected ErrBadReference, got %v", err)
	}
}

func TestDenseArrayRoundTrip(t *testing.T) {
	value := []interface{}{1, "a", true, nil}
	encoded, err := NewEncoder().Encode(value)
	if err != nil {
		t.Fatal(err)
	}
	decoded, n, err := NewDecoder().Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(encoded) {
		t.Errorf("expected %d bytes consumed, got %d", len(encoded), n)
	}
	if !reflect.DeepEqual(decoded, value) {
		t.Errorf("got %+v, want %+v", decoded, value)
	}
}

func TestAssociativeArray(t *testing.T) {
	// One associative entry ("fps" -> integer 30), no dense part.
	data := []byte{
		TypeArray, 0x01, // zero dense elements, inline
		0x07, 'f', 'p', 's', // key, inline string of length 3
		TypeInteger, 30,
		UTF8Empty, // end of associative section
	}
	v, _, err := NewDecoder().Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := v.(Array)
	if !ok {
		t.Fatalf("expected Array, got %T", v)
	}
	if len(arr.Associative) != 1 || arr.Associative[0].Key != "fps" || arr.Associative[0].Value.(int) != 30 {
		t.Errorf("got %+v", arr)
	}
}

func TestByteArrayRoundTrip(t *testing.T) {
	value := []byte{0x00, 0x01, 0xFF, 0x7F}
	encoded, err := NewEncoder().Encode(value)
	if err != nil {
		t.Fatal(err)
	}
	decoded, _, err := NewDecoder().Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, value) {
		t.Errorf("got %v, want %v", decoded, value)
	}
}

func TestUnsupportedMarkers(t *testing.T) {
	unsupportedTests := []struct {
		name   string
		marker byte
	}{
		{"object", TypeObject},
		{"vectorInt", TypeVectorInt},
		{"vectorObject", TypeVectorObject},
		{"dictionary", TypeDictionary},
	}
	for _, tt := range unsupportedTests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDecoder().Decode([]byte{tt.marker, 0x01})
			if !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := NewDecoder().Decode(nil); !errors.Is(err, ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData, got %v", err)
	}
	if _, _, err := NewDecoder().Decode([]byte{TypeDouble, 0x40}); !errors.Is(err, ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData, got %v", err)
	}
	if _, _, err := NewDecoder().Decode([]byte{TypeString, 0x09, 'h', 'i'}); !errors.Is(err, ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData, got %v", err)
	}
}

// A dense count larger than the remaining input must fail before any
// allocation is sized by it. 0xFF 0xFF 0xFF 0xFF is the maximum inline U29,
// a dense count of 268435455 followed by the empty assoc terminator.
func TestDecodeArrayOverlongCount(t *testing.T) {
	data := []byte{TypeArray, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	if _, _, err := NewDecoder().Decode(data); !errors.Is(err, ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData, got %v", err)
	}
}
