package rtmp

import (
	"encoding/binary"
	"io"

	"github.com/calderab/rtmp/amf/amf0"
	"github.com/calderab/rtmp/internal/binary24"
)

// WriteFlusher is the outbound half of the transport boundary.
type WriteFlusher interface {
	io.Writer
	Flush() error
}

// ChunkWriter encodes messages into the chunk stream. Messages larger than
// the write chunk size are split into a type 0 chunk followed by type 3
// continuations.
type ChunkWriter struct {
	out       WriteFlusher
	chunkSize uint32
}

func NewChunkWriter(out WriteFlusher) *ChunkWriter {
	return &ChunkWriter{
		out:       out,
		chunkSize: DefaultReadChunkSize,
	}
}

// SetChunkSize changes the maximum chunk payload length for subsequent
// writes. It takes effect only after the corresponding Set Chunk Size
// control message has been written.
func (w *ChunkWriter) SetChunkSize(size uint32) {
	if size == 0 {
		return
	}
	w.chunkSize = size
}

// Write chunks msg onto the transport and flushes.
func (w *ChunkWriter) Write(msg *Message) error {
	header := make([]byte, 0, 18)
	header = appendBasicHeader(header, ChunkType0, msg.ChunkStreamID)

	extended := msg.Timestamp >= extendedTimestampMarker
	ts := msg.Timestamp
	if extended {
		ts = extendedTimestampMarker
	}
	var mh [chunkType0MessageHeaderLength]byte
	binary24.BigEndian.PutUint24(mh[0:3], ts)
	binary24.BigEndian.PutUint24(mh[3:6], uint32(len(msg.Payload)))
	mh[6] = byte(msg.Type)
	binary.LittleEndian.PutUint32(mh[7:11], msg.StreamID)
	header = append(header, mh[:]...)
	if extended {
		var ext [4]byte
		binary.BigEndian.PutUint32(ext[:], msg.Timestamp)
		header = append(header, ext[:]...)
	}
	if _, err := w.out.Write(header); err != nil {
		return err
	}

	payload := msg.Payload
	for {
		take := uint32(len(payload))
		if take > w.chunkSize {
			take = w.chunkSize
		}
		if _, err := w.out.Write(payload[:take]); err != nil {
			return err
		}
		payload = payload[take:]
		if len(payload) == 0 {
			break
		}
		cont := appendBasicHeader(nil, ChunkType3, msg.ChunkStreamID)
		if extended {
			var ext [4]byte
			binary.BigEndian.PutUint32(ext[:], msg.Timestamp)
			cont = append(cont, ext[:]...)
		}
		if _, err := w.out.Write(cont); err != nil {
			return err
		}
	}
	return w.out.Flush()
}

func appendBasicHeader(b []byte, chunkType ChunkType, csid uint32) []byte {
	switch {
	case csid < 64:
		return append(b, byte(chunkType)<<6|byte(csid))
	case csid < 320:
		return append(b, byte(chunkType)<<6, byte(csid-64))
	default:
		return append(b, byte(chunkType)<<6|1, byte((csid-64)>>8), byte(csid-64))
	}
}

// Protocol control and command message builders. All protocol control
// messages travel on the protocol channel with message stream ID 0.

func newWindowAckSizeMessage(size uint32) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, size)
	return &Message{ChunkStreamID: ProtocolChannel, Type: WindowAckSize, Payload: payload}
}

func newSetPeerBandwidthMessage(size uint32, limitType uint8) *Message {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload, size)
	payload[4] = limitType
	return &Message{ChunkStreamID: ProtocolChannel, Type: SetPeerBandwidth, Payload: payload}
}

func newSetChunkSizeMessage(size uint32) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, size)
	return &Message{ChunkStreamID: ProtocolChannel, Type: SetChunkSize, Payload: payload}
}

func newAcknowledgementMessage(sequence uint32) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, sequence)
	return &Message{ChunkStreamID: ProtocolChannel, Type: Acknowledgement, Payload: payload}
}

func newStreamBeginMessage(streamID uint32) *Message {
	payload := make([]byte, 6)
	binary.BigEndian.PutUint16(payload, EventStreamBegin)
	binary.BigEndian.PutUint32(payload[2:], streamID)
	return &Message{ChunkStreamID: ProtocolChannel, Type: UserControlMessage, Payload: payload}
}

// newCommandMessage builds an AMF0 command message out of the given values.
func newCommandMessage(csid uint32, streamID uint32, values ...interface{}) (*Message, error) {
	payload, err := amf0.EncodeAll(values...)
	if err != nil {
		return nil, err
	}
	return &Message{
		ChunkStreamID: csid,
		Type:          CommandMessageAMF0,
		StreamID:      streamID,
		Payload:       payload,
	}, nil
}
