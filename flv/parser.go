package flv

import (
	"bytes"
	"encoding/binary"

	"github.com/calderab/rtmp/audio"
	"github.com/calderab/rtmp/internal/binary24"
	"github.com/calderab/rtmp/video"
)

type headerState uint8

const (
	headerUnknown headerState = iota
	headerPresent
	headerAbsent
)

// Parser incrementally decodes an FLV byte stream. Feed it data with Parse as
// it arrives; it consumes whole tags and reports how many bytes it used, so
// the caller retains only the unconsumed suffix. The zero value accepts an
// optional global header followed by back-pointer + tag framing.
type Parser struct {
	state  headerState
	header Header
}

// Header returns the decoded global header and whether one was seen.
func (p *Parser) Header() (Header, bool) {
	return p.header, p.state == headerPresent
}

// Parse decodes as many complete tags as buf holds and returns them along
// with the number of bytes consumed. A short buffer is not an error: parsing
// resumes from the retained suffix on the next call, so the result is the
// same whether the stream arrives in one buffer or one byte at a time.
func (p *Parser) Parse(buf []byte) ([]Tag, int, error) {
	n := 0
	if p.state == headerUnknown {
		hn, err := p.parseHeader(buf)
		if err != nil {
			return nil, 0, err
		}
		if p.state == headerUnknown {
			return nil, 0, nil
		}
		n += hn
	}

	var tags []Tag
	for {
		if len(buf)-n < backPointerSize+TagHeaderSize {
			return tags, n, nil
		}
		// The previous-tag-size back-pointer is ignored on decode.
		tag, tn, err := ParseTag(buf[n+backPointerSize:])
		if err != nil {
			return tags, n, err
		}
		if tn == 0 {
			return tags, n, nil
		}
		tags = append(tags, tag)
		n += backPointerSize + tn
	}
}

// parseHeader attempts the 9-byte global header match. A stream that does not
// start with the FLV signature is treated as headerless tag data, which is
// how payload resumed mid-stream arrives.
func (p *Parser) parseHeader(buf []byte) (int, error) {
	probe := len(buf)
	if probe > len(signature) {
		probe = len(signature)
	}
	if !bytes.Equal(buf[:probe], []byte(signature)[:probe]) {
		p.state = headerAbsent
		return 0, nil
	}
	if len(buf) < HeaderSize {
		// Signature matches so far; wait for the full header.
		return 0, nil
	}
	if buf[3] != version {
		return 0, ErrBadVersion
	}
	offset := binary.BigEndian.Uint32(buf[5:9])
	if offset < HeaderSize {
		return 0, ErrBadSignature
	}
	if uint32(len(buf)) < offset {
		return 0, nil
	}
	p.header = Header{
		HasAudio: buf[4]&0x04 != 0,
		HasVideo: buf[4]&0x01 != 0,
	}
	p.state = headerPresent
	// The data offset points past the header; PreviousTagSize0 follows it and
	// is consumed by the tag loop.
	return int(offset), nil
}

// ParseTag decodes a single bare tag (header + payload, no back-pointer) from
// the beginning of buf. It returns the zero Tag and n == 0 when buf does not
// yet hold the whole tag. RTMP aggregate message bodies are framed this way.
func ParseTag(buf []byte) (Tag, int, error) {
	if len(buf) < TagHeaderSize {
		return Tag{}, 0, nil
	}
	dataSize := binary24.BigEndian.Uint24(buf[1:4])
	total := TagHeaderSize + int(dataSize)
	if len(buf) < total {
		return Tag{}, 0, nil
	}
	timestamp := binary24.BigEndian.Uint24(buf[4:7]) | uint32(buf[7])<<24
	tag := Tag{
		Type:      TagType(buf[0] & 0x1F),
		Timestamp: timestamp,
		StreamID:  binary24.BigEndian.Uint24(buf[8:11]),
		Data:      buf[TagHeaderSize:total],
	}
	return tag, total, nil
}

// ParseAudioData decodes the audio payload header at the front of an audio
// tag's data.
func ParseAudioData(data []byte) (AudioData, error) {
	if len(data) < 1 {
		return AudioData{}, ErrEmptyPayload
	}
	ad := AudioData{
		Format:     audio.Format(data[0] >> 4),
		SampleRate: audio.SampleRate((data[0] >> 2) & 0x03),
		SampleSize: audio.SampleSize((data[0] >> 1) & 0x01),
		Channels:   audio.Channel(data[0] & 0x01),
		Payload:    data[1:],
	}
	if ad.Format == audio.AAC {
		if len(data) < 2 {
			return AudioData{}, ErrEmptyPayload
		}
		ad.PacketType = audio.AACPacketType(data[1])
		ad.Payload = data[2:]
	}
	return ad, nil
}

// ParseVideoData decodes the video payload header at the front of a video
// tag's data.
func ParseVideoData(data []byte) (VideoData, error) {
	if len(data) < 1 {
		return VideoData{}, ErrEmptyPayload
	}
	vd := VideoData{
		FrameType: video.FrameType(data[0] >> 4),
		Codec:     video.Codec(data[0] & 0x0F),
		Payload:   data[1:],
	}
	if vd.Codec == video.H264 {
		if len(data) < 5 {
			return VideoData{}, ErrEmptyPayload
		}
		vd.PacketType = video.AVCPacketType(data[1])
		vd.CompositionTime = binary24.BigEndian.Int24(data[2:5])
		vd.Payload = data[5:]
	}
	return vd, nil
}
