package rtmp

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"

	"github.com/calderab/rtmp/amf/amf0"
	"github.com/calderab/rtmp/config"
	"github.com/calderab/rtmp/flv"
)

var ErrRejected = errors.New("dispatcher: request rejected by policy")

const (
	statusLevelStatus = "status"
	statusLevelError  = "error"

	codeConnectSuccess  = "NetConnection.Connect.Success"
	codeConnectRejected = "NetConnection.Connect.Rejected"
	codePublishStart    = "NetStream.Publish.Start"
	codePublishBadName  = "NetStream.Publish.BadName"
	codePlayFailed      = "NetStream.Play.Failed"
)

// Dispatcher interprets complete messages in arrival order and turns them
// into session events. It owns the session state machine: protocol control
// messages mutate its state silently, commands are routed through the
// Validator and answered on the transport, media messages become events.
type Dispatcher struct {
	out       *ChunkWriter
	in        *ChunkReader
	validator Validator

	app            string
	tcURL          string
	streamKey      string
	publishingType string
	published      bool

	// ackWindow is the window acknowledgement size requested by the peer;
	// we send an Acknowledgement every time that many bytes arrive.
	ackWindow     uint32
	bytesReceived uint32
	lastAcked     uint32
	peerBandwidth uint32
}

// NewDispatcher wires a dispatcher to the chunk writer its replies go out
// on and the chunk reader it reconfigures when the peer changes the chunk
// size. A nil validator accepts everything.
func NewDispatcher(out *ChunkWriter, in *ChunkReader, validator Validator) *Dispatcher {
	if validator == nil {
		validator = AcceptAll{}
	}
	return &Dispatcher{
		out:       out,
		in:        in,
		validator: validator,
		ackWindow: config.DefaultClientWindowSize,
	}
}

// Published reports whether a publish command has been accepted.
func (d *Dispatcher) Published() bool {
	return d.published
}

// StreamKey returns the stream key set by publish, or empty before then.
func (d *Dispatcher) StreamKey() string {
	return d.streamKey
}

// AddInboundBytes records n raw bytes received from the transport and sends
// an Acknowledgement whenever a full window has arrived.
func (d *Dispatcher) AddInboundBytes(n uint32) error {
	d.bytesReceived += n
	if d.bytesReceived-d.lastAcked >= d.ackWindow {
		d.lastAcked = d.bytesReceived
		return d.out.Write(newAcknowledgementMessage(d.bytesReceived))
	}
	return nil
}

// Dispatch processes one message and returns the events it produced, in
// order. A returned error is fatal for the connection; decode failures in a
// single message produce a Warning event and a nil error instead.
func (d *Dispatcher) Dispatch(msg *Message) ([]Event, error) {
	switch msg.Type {
	case SetChunkSize:
		if len(msg.Payload) < 4 {
			return []Event{Warning{Reason: "short set chunk size message"}}, nil
		}
		// The high bit of the chunk size field is reserved.
		size := binary.BigEndian.Uint32(msg.Payload) & 0x7FFFFFFF
		d.in.SetChunkSize(size)
		return nil, nil

	case AbortMessage:
		if len(msg.Payload) < 4 {
			return []Event{Warning{Reason: "short abort message"}}, nil
		}
		d.in.Abort(binary.BigEndian.Uint32(msg.Payload))
		return nil, nil

	case Acknowledgement:
		return nil, nil

	case UserControlMessage:
		return d.handleUserControl(msg)

	case WindowAckSize:
		if len(msg.Payload) < 4 {
			return []Event{Warning{Reason: "short window acknowledgement size message"}}, nil
		}
		d.ackWindow = binary.BigEndian.Uint32(msg.Payload)
		return nil, nil

	case SetPeerBandwidth:
		if len(msg.Payload) < 5 {
			return []Event{Warning{Reason: "short set peer bandwidth message"}}, nil
		}
		d.peerBandwidth = binary.BigEndian.Uint32(msg.Payload)
		return nil, nil

	case CommandMessageAMF0, CommandMessageAMF3:
		values, err := decodeCommandBody(msg)
		if err != nil {
			return []Event{Warning{Reason: "undecodable command message: " + err.Error()}}, nil
		}
		return d.handleCommand(msg, values)

	case DataMessageAMF0, DataMessageAMF3:
		values, err := decodeCommandBody(msg)
		if err != nil {
			return []Event{Warning{Reason: "undecodable data message: " + err.Error()}}, nil
		}
		return d.handleData(values)

	case AudioMessage:
		return []Event{Media{Kind: MediaAudio, Timestamp: msg.Timestamp, Payload: msg.Payload}}, nil

	case VideoMessage:
		return []Event{Media{Kind: MediaVideo, Timestamp: msg.Timestamp, Payload: msg.Payload}}, nil

	case AggregateMessage:
		return d.handleAggregate(msg)

	default:
		return []Event{Warning{Reason: "unrecognized message type " + strconv.Itoa(int(msg.Type))}}, nil
	}
}

// decodeCommandBody decodes the AMF values of a command or data message.
// AMF3-typed bodies from publishing clients are AMF0 values behind a format
// byte, with true AMF3 values reachable through the AVMPlus escape marker.
func decodeCommandBody(msg *Message) ([]interface{}, error) {
	body := msg.Payload
	if (msg.Type == CommandMessageAMF3 || msg.Type == DataMessageAMF3) && len(body) > 0 && body[0] == 0 {
		body = body[1:]
	}
	return amf0.DecodeAll(body)
}

func (d *Dispatcher) handleUserControl(msg *Message) ([]Event, error) {
	if len(msg.Payload) < 2 {
		return []Event{Warning{Reason: "short user control message"}}, nil
	}
	switch binary.BigEndian.Uint16(msg.Payload) {
	case EventPingRequest:
		if len(msg.Payload) < 6 {
			return []Event{Warning{Reason: "short ping request"}}, nil
		}
		pong := make([]byte, 6)
		binary.BigEndian.PutUint16(pong, EventPingResponse)
		copy(pong[2:], msg.Payload[2:6])
		reply := &Message{ChunkStreamID: ProtocolChannel, Type: UserControlMessage, Payload: pong}
		return nil, d.out.Write(reply)
	default:
		// Stream begin/EOF and the rest are bookkeeping only.
		return nil, nil
	}
}

func (d *Dispatcher) handleCommand(msg *Message, values []interface{}) ([]Event, error) {
	if len(values) == 0 {
		return []Event{Warning{Reason: "empty command message"}}, nil
	}
	name, ok := values[0].(string)
	if !ok {
		return []Event{Warning{Reason: "command message without a procedure name"}}, nil
	}
	var transactionID float64
	if len(values) > 1 {
		transactionID, _ = values[1].(float64)
	}

	switch name {
	case "connect":
		return d.handleConnect(msg, transactionID, values)
	case "createStream":
		reply, err := newCommandMessage(msg.ChunkStreamID, 0, "_result", transactionID, nil, config.DefaultStreamID)
		if err != nil {
			return nil, err
		}
		return nil, d.out.Write(reply)
	case "releaseStream":
		return d.handleReleaseStream(msg, transactionID, values)
	case "FCPublish":
		return d.handleFCPublish(msg, values)
	case "publish":
		return d.handlePublish(msg, transactionID, values)
	case "FCUnpublish", "deleteStream", "closeStream":
		d.published = false
		return nil, nil
	case "play":
		// Ingest only; answer with an error and keep the connection.
		if err := d.writeStatus(msg, statusLevelError, codePlayFailed, "playback is not supported"); err != nil {
			return nil, err
		}
		return []Event{Warning{Reason: "play request refused"}}, nil
	default:
		return nil, nil
	}
}

func (d *Dispatcher) handleConnect(msg *Message, transactionID float64, values []interface{}) ([]Event, error) {
	var info amf0.Object
	if len(values) > 2 {
		info, _ = values[2].(amf0.Object)
	}
	app := info.String("app")
	tcURL := info.String("tcUrl")

	if err := d.validator.ValidateConnect(app, info); err != nil {
		reply, berr := newCommandMessage(msg.ChunkStreamID, 0, "_error", transactionID, nil, amf0.Object{
			{Key: "level", Value: statusLevelError},
			{Key: "code", Value: codeConnectRejected},
			{Key: "description", Value: err.Error()},
		})
		if berr != nil {
			return nil, berr
		}
		if werr := d.out.Write(reply); werr != nil {
			return nil, werr
		}
		return nil, errors.Wrap(ErrRejected, "connect to app "+app)
	}

	d.app = app
	d.tcURL = tcURL

	if err := d.out.Write(newWindowAckSizeMessage(config.DefaultClientWindowSize)); err != nil {
		return nil, err
	}
	if err := d.out.Write(newSetPeerBandwidthMessage(config.DefaultClientWindowSize, LimitDynamic)); err != nil {
		return nil, err
	}
	if err := d.out.Write(newStreamBeginMessage(config.DefaultPublishStream)); err != nil {
		return nil, err
	}
	if err := d.out.Write(newSetChunkSizeMessage(config.DefaultChunkSize)); err != nil {
		return nil, err
	}
	d.out.SetChunkSize(config.DefaultChunkSize)

	reply, err := newCommandMessage(msg.ChunkStreamID, 0, "_result", transactionID,
		amf0.Object{
			{Key: "fmsVer", Value: config.FlashMediaServerVersion},
			{Key: "capabilities", Value: config.Capabilities},
			{Key: "mode", Value: config.Mode},
		},
		amf0.Object{
			{Key: "level", Value: statusLevelStatus},
			{Key: "code", Value: codeConnectSuccess},
			{Key: "description", Value: "Connection accepted."},
			{Key: "objectEncoding", Value: 0},
		})
	if err != nil {
		return nil, err
	}
	if err := d.out.Write(reply); err != nil {
		return nil, err
	}
	return []Event{Connected{App: app, TCURL: tcURL, Info: info}}, nil
}

func (d *Dispatcher) handleReleaseStream(msg *Message, transactionID float64, values []interface{}) ([]Event, error) {
	var streamKey string
	if len(values) > 3 {
		streamKey, _ = values[3].(string)
	}
	if err := d.validator.ValidateReleaseStream(streamKey); err != nil {
		reply, berr := newCommandMessage(msg.ChunkStreamID, 0, "_error", transactionID, nil, amf0.Object{
			{Key: "level", Value: statusLevelError},
			{Key: "code", Value: codePublishBadName},
			{Key: "description", Value: err.Error()},
		})
		if berr != nil {
			return nil, berr
		}
		if werr := d.out.Write(reply); werr != nil {
			return nil, werr
		}
		return nil, errors.Wrap(ErrRejected, "releaseStream of "+streamKey)
	}
	reply, err := newCommandMessage(msg.ChunkStreamID, 0, "_result", transactionID, nil)
	if err != nil {
		return nil, err
	}
	return nil, d.out.Write(reply)
}

func (d *Dispatcher) handleFCPublish(msg *Message, values []interface{}) ([]Event, error) {
	var streamKey string
	if len(values) > 3 {
		streamKey, _ = values[3].(string)
	}
	reply, err := newCommandMessage(msg.ChunkStreamID, 0, "onFCPublish", 0, nil, amf0.Object{
		{Key: "level", Value: statusLevelStatus},
		{Key: "code", Value: codePublishStart},
		{Key: "description", Value: "FCPublish to stream " + streamKey},
	})
	if err != nil {
		return nil, err
	}
	return nil, d.out.Write(reply)
}

func (d *Dispatcher) handlePublish(msg *Message, transactionID float64, values []interface{}) ([]Event, error) {
	var streamKey, publishingType string
	if len(values) > 3 {
		streamKey, _ = values[3].(string)
	}
	if len(values) > 4 {
		publishingType, _ = values[4].(string)
	}

	if err := d.validator.ValidatePublish(d.app, streamKey, publishingType); err != nil {
		if werr := d.writeStatus(msg, statusLevelError, codePublishBadName, err.Error()); werr != nil {
			return nil, werr
		}
		return nil, errors.Wrap(ErrRejected, "publish of "+streamKey)
	}

	if err := d.out.Write(newStreamBeginMessage(msg.StreamID)); err != nil {
		return nil, err
	}
	if err := d.writeStatus(msg, statusLevelStatus, codePublishStart, "Publishing "+streamKey+"."); err != nil {
		return nil, err
	}
	d.streamKey = streamKey
	d.publishingType = publishingType
	d.published = true
	return []Event{Published{App: d.app, StreamKey: streamKey, PublishingType: publishingType}}, nil
}

// writeStatus sends an onStatus command on the same chunk and message stream
// as the request it answers.
func (d *Dispatcher) writeStatus(msg *Message, level, code, description string) error {
	reply, err := newCommandMessage(msg.ChunkStreamID, msg.StreamID, "onStatus", 0, nil, amf0.Object{
		{Key: "level", Value: level},
		{Key: "code", Value: code},
		{Key: "description", Value: description},
	})
	if err != nil {
		return err
	}
	return d.out.Write(reply)
}

func (d *Dispatcher) handleData(values []interface{}) ([]Event, error) {
	if len(values) > 0 {
		if name, _ := values[0].(string); name == "@setDataFrame" {
			values = values[1:]
		}
	}
	if err := d.validator.ValidateSetDataFrame(values); err != nil {
		return []Event{Warning{Reason: "metadata rejected: " + err.Error()}}, nil
	}
	return []Event{Metadata{Values: values}}, nil
}

// handleAggregate re-dispatches the FLV-tag-framed sub-messages of an
// aggregate message. The first sub-message's timestamp is mapped onto the
// aggregate's own timestamp and the rest shifted by the same offset.
func (d *Dispatcher) handleAggregate(msg *Message) ([]Event, error) {
	var events []Event
	body := msg.Payload
	var offset uint32
	first := true
	for len(body) > 0 {
		tag, n, err := flv.ParseTag(body)
		if err != nil || n == 0 {
			events = append(events, Warning{Reason: "unknown aggregate sub-tag"})
			return events, nil
		}
		if first {
			offset = msg.Timestamp - tag.Timestamp
			first = false
		}
		sub := &Message{
			ChunkStreamID: msg.ChunkStreamID,
			Type:          MessageType(tag.Type),
			Timestamp:     tag.Timestamp + offset,
			StreamID:      msg.StreamID,
			Payload:       tag.Data,
		}
		subEvents, err := d.Dispatch(sub)
		if err != nil {
			return events, err
		}
		events = append(events, subEvents...)
		body = body[n:]
		// Each sub-tag is followed by a 4-byte back-pointer.
		if len(body) < 4 {
			break
		}
		body = body[4:]
	}
	return events, nil
}
