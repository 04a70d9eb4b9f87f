package rtmp

type MessageType uint8

const (
	SetChunkSize MessageType = 1 + iota
	AbortMessage
	Acknowledgement
	UserControlMessage
	WindowAckSize
	SetPeerBandwidth

	AudioMessage MessageType = 8
	VideoMessage MessageType = 9

	DataMessageAMF3         MessageType = 15
	SharedObjectMessageAMF3 MessageType = 16
	CommandMessageAMF3      MessageType = 17

	DataMessageAMF0         MessageType = 18
	SharedObjectMessageAMF0 MessageType = 19
	CommandMessageAMF0      MessageType = 20

	AggregateMessage MessageType = 22
)

// User Control Message event types.
const (
	EventStreamBegin      uint16 = 0
	EventStreamEOF        uint16 = 1
	EventStreamDry        uint16 = 2
	EventSetBufferLength  uint16 = 3
	EventStreamIsRecorded uint16 = 4
	EventPingRequest      uint16 = 6
	EventPingResponse     uint16 = 7
)

// Set Peer Bandwidth limit types.
const (
	LimitHard    uint8 = 0
	LimitSoft    uint8 = 1
	LimitDynamic uint8 = 2
)

// Message is one complete RTMP message, reassembled from one or more chunks.
// Ownership of Payload passes to the consumer once the ChunkReader emits it.
type Message struct {
	ChunkStreamID uint32
	Type          MessageType
	// Timestamp is the absolute timestamp in milliseconds, with any deltas
	// from continuation headers already folded in.
	Timestamp uint32
	StreamID  uint32
	Payload   []byte
}
