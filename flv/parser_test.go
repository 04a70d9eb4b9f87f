package flv

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

func encodeTag(tagType TagType, timestamp uint32, streamID uint32, data []byte) []byte {
	b := make([]byte, TagHeaderSize+len(data))
	b[0] = byte(tagType)
	b[1] = byte(len(data) >> 16)
	b[2] = byte(len(data) >> 8)
	b[3] = byte(len(data))
	b[4] = byte(timestamp >> 16)
	b[5] = byte(timestamp >> 8)
	b[6] = byte(timestamp)
	b[7] = byte(timestamp >> 24)
	b[8] = byte(streamID >> 16)
	b[9] = byte(streamID >> 8)
	b[10] = byte(streamID)
	copy(b[TagHeaderSize:], data)
	return b
}

func encodeStream(tags ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("FLV")
	buf.WriteByte(1)
	buf.WriteByte(0x05)
	offset := make([]byte, 4)
	binary.BigEndian.PutUint32(offset, HeaderSize)
	buf.Write(offset)
	prev := uint32(0)
	for _, tag := range tags {
		bp := make([]byte, 4)
		binary.BigEndian.PutUint32(bp, prev)
		buf.Write(bp)
		buf.Write(tag)
		prev = uint32(len(tag))
	}
	return buf.Bytes()
}

func TestParseStream(t *testing.T) {
	stream := encodeStream(
		encodeTag(TagAudio, 0, 0, []byte{0xAF, 0x00, 0x12}),
		encodeTag(TagVideo, 40, 0, []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xAA}),
	)

	var p Parser
	tags, n, err := p.Parse(stream)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(stream) {
		t.Fatalf("consumed %d of %d bytes", n, len(stream))
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].Type != TagAudio || tags[0].Timestamp != 0 {
		t.Errorf("unexpected first tag: %+v", tags[0])
	}
	if tags[1].Type != TagVideo || tags[1].Timestamp != 40 {
		t.Errorf("unexpected second tag: %+v", tags[1])
	}
	header, ok := p.Header()
	if !ok {
		t.Fatal("expected a global header")
	}
	if !header.HasAudio || !header.HasVideo {
		t.Errorf("unexpected header flags: %+v", header)
	}
}

// Feeding the stream a byte at a time must yield the same tags as feeding it
// whole.
func TestParseFragmented(t *testing.T) {
	stream := encodeStream(
		encodeTag(TagScript, 0, 0, []byte{0x02, 0x00, 0x01, 'x'}),
		encodeTag(TagAudio, 23, 0, []byte{0xAF, 0x01, 0xDE, 0xAD}),
		encodeTag(TagVideo, 46, 0, []byte{0x27, 0x01, 0x00, 0x00, 0x05, 0xBE}),
	)

	var whole Parser
	want, _, err := whole.Parse(stream)
	if err != nil {
		t.Fatal(err)
	}

	var p Parser
	var got []Tag
	var pending []byte
	for _, b := range stream {
		pending = append(pending, b)
		tags, n, err := p.Parse(pending)
		if err != nil {
			t.Fatal(err)
		}
		for _, tag := range tags {
			tag.Data = append([]byte(nil), tag.Data...)
			got = append(got, tag)
		}
		pending = pending[n:]
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fragmented parse diverged:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestParseHeaderlessStream(t *testing.T) {
	tag := encodeTag(TagAudio, 100, 0, []byte{0x2F, 0x55})
	stream := append(make([]byte, 4), tag...)

	var p Parser
	tags, n, err := p.Parse(stream)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(stream) {
		t.Fatalf("consumed %d of %d bytes", n, len(stream))
	}
	if len(tags) != 1 || tags[0].Timestamp != 100 {
		t.Fatalf("unexpected tags: %+v", tags)
	}
	if _, ok := p.Header(); ok {
		t.Error("expected no global header")
	}
}

func TestParseBadVersion(t *testing.T) {
	stream := encodeStream(encodeTag(TagAudio, 0, 0, []byte{0x00}))
	stream[3] = 2

	var p Parser
	if _, _, err := p.Parse(stream); err != ErrBadVersion {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestParseExtendedTimestamp(t *testing.T) {
	tag := encodeTag(TagVideo, 0x01FFFFFF, 0, []byte{0x17, 0x00, 0x00, 0x00, 0x00})
	parsed, n, err := ParseTag(tag)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(tag) {
		t.Fatalf("consumed %d of %d bytes", n, len(tag))
	}
	if parsed.Timestamp != 0x01FFFFFF {
		t.Errorf("timestamp = %#x, want 0x01FFFFFF", parsed.Timestamp)
	}
}

func TestParseTagIncomplete(t *testing.T) {
	tag := encodeTag(TagAudio, 0, 0, []byte{0xAF, 0x01, 0x00})
	for i := 0; i < len(tag); i++ {
		if _, n, err := ParseTag(tag[:i]); err != nil || n != 0 {
			t.Fatalf("truncated at %d: n=%d err=%v", i, n, err)
		}
	}
}

func TestParseAudioData(t *testing.T) {
	ad, err := ParseAudioData([]byte{0xAF, 0x01, 0xDE, 0xAD})
	if err != nil {
		t.Fatal(err)
	}
	if ad.Format != 10 || ad.SampleRate != 3 || ad.SampleSize != 1 || ad.Channels != 1 {
		t.Errorf("unexpected audio header: %+v", ad)
	}
	if ad.PacketType != 1 {
		t.Errorf("packet type = %d, want 1", ad.PacketType)
	}
	if !bytes.Equal(ad.Payload, []byte{0xDE, 0xAD}) {
		t.Errorf("payload = % x", ad.Payload)
	}

	if _, err := ParseAudioData(nil); err != ErrEmptyPayload {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	// AAC with no packet type byte.
	if _, err := ParseAudioData([]byte{0xAF}); err != ErrEmptyPayload {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestParseVideoData(t *testing.T) {
	// Inter frame, AVC NALU, composition time -2.
	vd, err := ParseVideoData([]byte{0x27, 0x01, 0xFF, 0xFF, 0xFE, 0xBE, 0xEF})
	if err != nil {
		t.Fatal(err)
	}
	if vd.FrameType != 2 || vd.Codec != 7 || vd.PacketType != 1 {
		t.Errorf("unexpected video header: %+v", vd)
	}
	if vd.CompositionTime != -2 {
		t.Errorf("composition time = %d, want -2", vd.CompositionTime)
	}
	if !bytes.Equal(vd.Payload, []byte{0xBE, 0xEF}) {
		t.Errorf("payload = % x", vd.Payload)
	}

	if _, err := ParseVideoData([]byte{0x17, 0x00}); err != ErrEmptyPayload {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}
