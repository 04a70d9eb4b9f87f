package rtmp

import "github.com/calderab/rtmp/amf/amf0"

// MediaKind distinguishes audio from video payload in Media events.
type MediaKind uint8

const (
	MediaAudio MediaKind = iota
	MediaVideo
)

func (k MediaKind) String() string {
	if k == MediaAudio {
		return "audio"
	}
	return "video"
}

// Event is one entry in the ordered sequence a session produces. The
// dispatcher returns events to its caller instead of invoking registered
// handlers, so a session can be unit tested by feeding it bytes and
// asserting on the returned sequence.
type Event interface {
	event()
}

// Connected is emitted after a connect command is accepted.
type Connected struct {
	App   string
	TCURL string
	// Info is the full command object the client sent with connect.
	Info amf0.Object
}

// Published is emitted after a publish command is accepted.
type Published struct {
	App            string
	StreamKey      string
	PublishingType string
}

// Metadata carries the values of a @setDataFrame/onMetaData data message.
type Metadata struct {
	Values []interface{}
}

// Media carries one audio or video message payload. This is the hot path:
// Payload is the message payload itself, not a copy.
type Media struct {
	Kind      MediaKind
	Timestamp uint32
	Payload   []byte
}

// Warning reports a non-fatal protocol problem: an undecodable command, an
// unrecognized message type, a rejected metadata frame.
type Warning struct {
	Reason string
}

// EndOfStream is the terminal event, emitted once when the transport closes.
type EndOfStream struct{}

func (Connected) event()   {}
func (Published) event()   {}
func (Metadata) event()    {}
func (Media) event()       {}
func (Warning) event()     {}
func (EndOfStream) event() {}
