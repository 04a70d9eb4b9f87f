// Package amf dispatches between the AMF0 and AMF3 codecs by version number.
package amf

import (
	"github.com/calderab/rtmp/amf/amf0"
	"github.com/calderab/rtmp/amf/amf3"
	"github.com/pkg/errors"
)

const AMFVersion0 uint8 = 0
const AMFVersion3 uint8 = 3

func Encode(v interface{}, version uint8) ([]byte, error) {
	switch version {
	case AMFVersion0:
		return amf0.Encode(v)
	case AMFVersion3:
		return amf3.NewEncoder().Encode(v)
	default:
		return nil, errors.Errorf("amf: unsupported AMF version %d", version)
	}
}

func Decode(b []byte, version uint8) (interface{}, int, error) {
	switch version {
	case AMFVersion0:
		return amf0.Decode(b)
	case AMFVersion3:
		return amf3.NewDecoder().Decode(b)
	default:
		return nil, 0, errors.Errorf("amf: unsupported AMF version %d", version)
	}
}
