// Package flv decodes FLV container framing: the global file header, tag
// framing, and the audio/video payload headers that wrap AAC and AVC
// elementary streams. It is a pure codec; it never blocks or performs I/O.
package flv

import (
	"github.com/calderab/rtmp/audio"
	"github.com/calderab/rtmp/video"
	"github.com/pkg/errors"
)

const signature = "FLV"
const version = 1

// HeaderSize is the length of the FLV global header.
const HeaderSize = 9

// TagHeaderSize is the length of a tag header (type + data size + timestamp +
// stream id).
const TagHeaderSize = 11

// backPointerSize is the length of the previous-tag-size field between tags.
const backPointerSize = 4

type TagType uint8

const (
	TagAudio  TagType = 8
	TagVideo  TagType = 9
	TagScript TagType = 18
)

var ErrBadSignature = errors.New("flv: header does not begin with the FLV signature")
var ErrBadVersion = errors.New("flv: unsupported container version")
var ErrEmptyPayload = errors.New("flv: tag payload is empty")

// Header is the decoded FLV global header.
type Header struct {
	HasAudio bool
	HasVideo bool
}

// Tag is one decoded FLV tag. Data aliases the input buffer; callers that
// retain a tag across buffer reuse must copy it.
type Tag struct {
	Type TagType
	// Timestamp in milliseconds, with the extension byte folded into the top
	// 8 bits.
	Timestamp uint32
	StreamID  uint32
	Data      []byte
}

// AudioData is the decoded audio payload header of an audio tag.
type AudioData struct {
	Format     audio.Format
	SampleRate audio.SampleRate
	SampleSize audio.SampleSize
	Channels   audio.Channel
	// PacketType is meaningful only when Format is audio.AAC.
	PacketType audio.AACPacketType
	// Payload is the elementary stream data after the audio headers.
	Payload []byte
}

// VideoData is the decoded video payload header of a video tag.
type VideoData struct {
	FrameType video.FrameType
	Codec     video.Codec
	// PacketType and CompositionTime are meaningful only when Codec is
	// video.H264.
	PacketType      video.AVCPacketType
	CompositionTime int32
	// Payload is the elementary stream data after the video headers.
	Payload []byte
}
