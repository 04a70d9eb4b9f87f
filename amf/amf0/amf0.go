// Package amf0 implements the AMF0 binary serialization format used in RTMP
// command and data messages.
package amf0

const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E // reserved, not supported
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
	TypeAVMPlus     byte = 0x11 // escapes into AMF3 encoding
)

// Pair is a single property of an Object or ECMAArray.
type Pair struct {
	Key   string
	Value interface{}
}

// Object is an AMF0 anonymous object. Property order is significant on the
// wire, so an Object is an ordered list of pairs rather than a map. Duplicate
// keys are illegal.
type Object []Pair

// Value returns the value stored under key and whether the key is present.
func (o Object) Value(key string) (interface{}, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// String returns the string stored under key, or the empty string if the key
// is missing or holds a different type.
func (o Object) String(key string) string {
	v, _ := o.Value(key)
	s, _ := v.(string)
	return s
}

// ECMAArray is an AMF0 associative array. It carries an entry count on the
// wire but is otherwise framed like an Object.
type ECMAArray []Pair

// Value returns the value stored under key and whether the key is present.
func (a ECMAArray) Value(key string) (interface{}, bool) {
	return Object(a).Value(key)
}

// StrictArray is an AMF0 dense array.
type StrictArray []interface{}

// Undefined is the AMF0 undefined value.
type Undefined struct{}

// Reference points back at a previously transmitted complex value by index.
type Reference uint16

// XMLDocument is an AMF0 XML document payload, framed like a long string.
type XMLDocument string
