package rtmp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/calderab/rtmp/internal/binary24"
)

var ErrMissingPriorChunk = errors.New("chunk reader: header inherits from a chunk stream with no prior chunk")
var ErrInterleavedMessage = errors.New("chunk reader: new message started while another message on the same chunk stream is incomplete")

// partialMessage accumulates the payload of a message that spans multiple
// chunks, keyed by chunk stream ID in the reader.
type partialMessage struct {
	header  ChunkHeader
	payload []byte
}

// ChunkReader reassembles complete messages out of the interleaved chunk
// stream. It is a pull decoder over an append-only buffer: the caller
// appends socket reads to its own buffer, calls Next, and retains only the
// suffix Next did not consume. Header inheritance is tracked per chunk
// stream ID, never globally.
type ChunkReader struct {
	// prevChunkHeader maps a chunk stream ID to the last resolved header
	// seen on it, which later chunks inherit fields from.
	prevChunkHeader map[uint32]ChunkHeader
	partial         map[uint32]*partialMessage
	chunkSize       uint32
}

func NewChunkReader() *ChunkReader {
	return &ChunkReader{
		prevChunkHeader: make(map[uint32]ChunkHeader),
		partial:         make(map[uint32]*partialMessage),
		chunkSize:       DefaultReadChunkSize,
	}
}

// SetChunkSize changes the maximum chunk payload length used for all
// subsequent chunks. The caller must apply a Set Chunk Size control message
// before the next call to Next.
func (r *ChunkReader) SetChunkSize(size uint32) {
	if size == 0 {
		return
	}
	r.chunkSize = size
}

// Abort discards the partially assembled message on the given chunk stream,
// as requested by an Abort control message.
func (r *ChunkReader) Abort(csid uint32) {
	delete(r.partial, csid)
}

// Next consumes whole chunks from buf until it completes a message or runs
// out of input. It returns the completed message (nil if more input is
// needed) and the number of bytes consumed; the caller retains the rest.
// The returned message owns its payload.
func (r *ChunkReader) Next(buf []byte) (*Message, int, error) {
	n := 0
	for {
		msg, cn, err := r.readChunk(buf[n:])
		if err != nil {
			return nil, n, err
		}
		if cn == 0 {
			return nil, n, nil
		}
		n += cn
		if msg != nil {
			return msg, n, nil
		}
	}
}

// readChunk decodes one chunk. It returns n == 0 when b does not yet hold
// the whole chunk, and a non-nil message when this chunk completed one.
func (r *ChunkReader) readChunk(b []byte) (*Message, int, error) {
	if len(b) < 1 {
		return nil, 0, nil
	}
	chunkType := ChunkType(b[0] >> 6)
	csid := uint32(b[0] & 0x3F)
	n := 1
	// csid values 0 and 1 select the 2- and 3-byte basic header forms.
	switch csid {
	case 0:
		if len(b) < 2 {
			return nil, 0, nil
		}
		csid = uint32(b[1]) + 64
		n = 2
	case 1:
		if len(b) < 3 {
			return nil, 0, nil
		}
		csid = uint32(binary.BigEndian.Uint16(b[1:3])) + 64
		n = 3
	}

	prev, prevExists := r.prevChunkHeader[csid]
	part := r.partial[csid]
	if part != nil && chunkType != ChunkType3 {
		return nil, 0, ErrInterleavedMessage
	}

	header := ChunkHeader{ChunkType: chunkType, ChunkStreamID: csid}
	switch chunkType {
	case ChunkType0:
		if len(b) < n+chunkType0MessageHeaderLength {
			return nil, 0, nil
		}
		header.Timestamp = binary24.BigEndian.Uint24(b[n:])
		header.MessageLength = binary24.BigEndian.Uint24(b[n+3:])
		header.MessageTypeID = MessageType(b[n+6])
		// Message stream ID is the one little-endian field on the wire.
		header.MessageStreamID = binary.LittleEndian.Uint32(b[n+7 : n+11])
		n += chunkType0MessageHeaderLength

	case ChunkType1:
		if !prevExists {
			return nil, 0, ErrMissingPriorChunk
		}
		if len(b) < n+chunkType1MessageHeaderLength {
			return nil, 0, nil
		}
		header.Timestamp = binary24.BigEndian.Uint24(b[n:])
		header.MessageLength = binary24.BigEndian.Uint24(b[n+3:])
		header.MessageTypeID = MessageType(b[n+6])
		header.MessageStreamID = prev.MessageStreamID
		n += chunkType1MessageHeaderLength

	case ChunkType2:
		if !prevExists {
			return nil, 0, ErrMissingPriorChunk
		}
		if len(b) < n+chunkType2MessageHeaderLength {
			return nil, 0, nil
		}
		header.Timestamp = binary24.BigEndian.Uint24(b[n:])
		header.MessageLength = prev.MessageLength
		header.MessageTypeID = prev.MessageTypeID
		header.MessageStreamID = prev.MessageStreamID
		n += chunkType2MessageHeaderLength

	case ChunkType3:
		if !prevExists {
			return nil, 0, ErrMissingPriorChunk
		}
		header.Timestamp = prev.Timestamp
		header.MessageLength = prev.MessageLength
		header.MessageTypeID = prev.MessageTypeID
		header.MessageStreamID = prev.MessageStreamID
	}

	// The extended timestamp form is sticky: a type 3 chunk on a stream that
	// used it carries the 4 extra bytes as well. Some encoders disagree with
	// the inherited value there; the larger one wins.
	switch {
	case chunkType != ChunkType3 && header.Timestamp == extendedTimestampMarker:
		if len(b) < n+4 {
			return nil, 0, nil
		}
		header.Timestamp = binary.BigEndian.Uint32(b[n : n+4])
		header.hasExtendedTimestamp = true
		n += 4
	case chunkType == ChunkType3 && prev.hasExtendedTimestamp:
		if len(b) < n+4 {
			return nil, 0, nil
		}
		ext := binary.BigEndian.Uint32(b[n : n+4])
		if ext > header.Timestamp {
			header.Timestamp = ext
		}
		header.hasExtendedTimestamp = true
		n += 4
	}

	if part != nil {
		// Continuation of the in-flight message on this chunk stream.
		remaining := part.header.MessageLength - uint32(len(part.payload))
		take := remaining
		if take > r.chunkSize {
			take = r.chunkSize
		}
		if uint32(len(b)-n) < take {
			return nil, 0, nil
		}
		part.payload = append(part.payload, b[n:n+int(take)]...)
		n += int(take)
		if uint32(len(part.payload)) < part.header.MessageLength {
			return nil, n, nil
		}
		delete(r.partial, csid)
		return &Message{
			ChunkStreamID: csid,
			Type:          part.header.MessageTypeID,
			Timestamp:     part.header.ElapsedTime,
			StreamID:      part.header.MessageStreamID,
			Payload:       part.payload,
		}, n, nil
	}

	// This chunk starts a new message: resolve its absolute timestamp. Type
	// 0 carries it directly; the others add a delta to the stream's elapsed
	// time, a type 3 chunk reusing the previous delta (zero after a type 0).
	switch chunkType {
	case ChunkType0:
		header.ElapsedTime = header.Timestamp
	case ChunkType3:
		delta := prev.Timestamp
		if prev.ChunkType == ChunkType0 {
			delta = 0
		}
		header.ElapsedTime = prev.ElapsedTime + delta
	default:
		header.ElapsedTime = prev.ElapsedTime + header.Timestamp
	}
	r.prevChunkHeader[csid] = header

	take := header.MessageLength
	if take > r.chunkSize {
		take = r.chunkSize
	}
	if uint32(len(b)-n) < take {
		return nil, 0, nil
	}
	payload := make([]byte, int(take), int(header.MessageLength))
	copy(payload, b[n:n+int(take)])
	n += int(take)

	if uint32(len(payload)) < header.MessageLength {
		r.partial[csid] = &partialMessage{header: header, payload: payload}
		return nil, n, nil
	}
	return &Message{
		ChunkStreamID: csid,
		Type:          header.MessageTypeID,
		Timestamp:     header.ElapsedTime,
		StreamID:      header.MessageStreamID,
		Payload:       payload,
	}, n, nil
}
