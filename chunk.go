package rtmp

type ChunkType uint8

const (
	ChunkType0 ChunkType = iota
	ChunkType1
	ChunkType2
	ChunkType3
)

const (
	chunkType0MessageHeaderLength = 11
	chunkType1MessageHeaderLength = 7
	chunkType2MessageHeaderLength = 3
)

const (
	// Only the protocol channel is fixed by the wire format (csid = 2); the
	// others keep each kind of traffic on its own chunk stream.
	ProtocolChannel uint32 = 2
	CommandChannel  uint32 = 3
	AudioChannel    uint32 = 4
	VideoChannel    uint32 = 7
)

// DefaultReadChunkSize is the chunk size both peers start with, before any
// Set Chunk Size message.
const DefaultReadChunkSize uint32 = 128

// extendedTimestampMarker in the 24-bit timestamp field signals that the real
// timestamp follows as 4 extra bytes.
const extendedTimestampMarker uint32 = 0xFFFFFF

// ChunkHeader is the decoded header of one chunk, with all fields a later
// chunk on the same chunk stream may inherit already resolved.
type ChunkHeader struct {
	ChunkType     ChunkType
	ChunkStreamID uint32
	// Timestamp is the raw value of the timestamp field: absolute for type 0
	// chunks, a delta for types 1 and 2, inherited for type 3.
	Timestamp       uint32
	MessageLength   uint32
	MessageTypeID   MessageType
	MessageStreamID uint32
	// ElapsedTime is the absolute message timestamp, accumulated from the
	// initial type 0 timestamp plus every delta since.
	ElapsedTime uint32
	// hasExtendedTimestamp is sticky per chunk stream: once a header uses the
	// extended form, type 3 chunks on the same stream carry the 4 extra bytes
	// as well.
	hasExtendedTimestamp bool
}
