// Package amf3 implements the subset of the AMF3 binary format needed for
// RTMP interop: primitive values, strings, dates, dense/associative arrays and
// byte arrays, with per-message reference tables. Typed objects, vectors and
// dictionaries are rejected.
package amf3

// Largest and smallest integers representable in the 29-bit integer form.
// Values outside this range are serialized as doubles, as per the spec.
const MaxInt int = 268435455
const MinInt int = -268435456

const (
	TypeUndefined    byte = 0x00
	TypeNull         byte = 0x01
	TypeFalse        byte = 0x02
	TypeTrue         byte = 0x03
	TypeInteger      byte = 0x04
	TypeDouble       byte = 0x05
	TypeString       byte = 0x06
	TypeXmlDoc       byte = 0x07
	TypeDate         byte = 0x08
	TypeArray        byte = 0x09
	TypeObject       byte = 0x0A
	TypeXml          byte = 0x0B
	TypeByteArray    byte = 0x0C
	TypeVectorInt    byte = 0x0D
	TypeVectorUint   byte = 0x0E
	TypeVectorDouble byte = 0x0F
	TypeVectorObject byte = 0x10
	TypeDictionary   byte = 0x11
)

// UTF8Empty is the U29 encoding of the empty string, which terminates the
// associative section of an array.
const UTF8Empty byte = 0x01

// Undefined is the AMF3 undefined value.
type Undefined struct{}

// XMLDocument is an AMF3 XML payload, framed like a string but tracked in the
// complex-value reference table.
type XMLDocument string

// Pair is one entry of the associative section of an Array.
type Pair struct {
	Key   string
	Value interface{}
}

// Array is an AMF3 array with both associative and dense sections. Purely
// dense arrays decode to a plain []interface{} instead.
type Array struct {
	Associative []Pair
	Dense       []interface{}
}
