package rtmp

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/calderab/rtmp/config"
	"github.com/calderab/rtmp/rand"
)

// Handler consumes the ordered event sequence a session produces. It is
// called from the session's goroutine; blocking here applies backpressure to
// the connection, which is the only suspension point in the decode chain.
type Handler interface {
	HandleEvent(sessionID string, event Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(sessionID string, event Event)

func (f HandlerFunc) HandleEvent(sessionID string, event Event) {
	f(sessionID, event)
}

// Session owns one accepted connection: it drives the handshake, feeds the
// chunk reader, dispatches messages, and forwards events to the handler. All
// decoding is sequential on the session's goroutine.
type Session struct {
	logger    *zap.Logger
	sessionID string
	conn      net.Conn
	socketr   *bufio.Reader
	socketw   *bufio.Writer

	handshake   *Handshake
	chunkReader *ChunkReader
	chunkWriter *ChunkWriter
	dispatcher  *Dispatcher

	registry *Registry
	handler  Handler
}

// NewSession wraps an accepted connection. A nil validator accepts every
// request, a nil handler drops events, a nil registry disables the
// single-publisher guard.
func NewSession(logger *zap.Logger, conn net.Conn, validator Validator, handler Handler, registry *Registry) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		logger:    logger,
		sessionID: rand.GenerateUuid(),
		conn:      conn,
		socketr:   bufio.NewReaderSize(conn, config.BufioSize),
		socketw:   bufio.NewWriterSize(conn, config.BufioSize),
		handshake: &Handshake{},
		registry:  registry,
		handler:   handler,
	}
	if validator == nil {
		validator = AcceptAll{}
	}
	if registry != nil {
		validator = guardValidator{inner: validator, registry: registry, sessionID: s.sessionID}
	}
	s.chunkReader = NewChunkReader()
	s.chunkWriter = NewChunkWriter(s.socketw)
	s.dispatcher = NewDispatcher(s.chunkWriter, s.chunkReader, validator)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.sessionID
}

// Start runs the session until the transport closes or a fatal protocol
// error occurs. It always emits EndOfStream exactly once before returning.
// A normal close after the handshake returns nil.
func (s *Session) Start() error {
	if s.registry != nil {
		s.registry.addSession(s)
		defer s.registry.removeSession(s.sessionID)
	}
	defer s.conn.Close()
	defer s.emit(EndOfStream{})

	buf := make([]byte, config.BufioSize)
	var pending []byte
	for {
		n, err := s.socketr.Read(buf)
		if n > 0 {
			if s.handshake.Done() {
				if aerr := s.dispatcher.AddInboundBytes(uint32(n)); aerr != nil {
					return aerr
				}
			}
			pending = append(pending, buf[:n]...)
			pending, err = s.process(pending)
			if err != nil {
				return err
			}
		}
		if err != nil {
			if err == io.EOF {
				if !s.handshake.Done() {
					return io.ErrUnexpectedEOF
				}
				return nil
			}
			return err
		}
	}
}

// process consumes as much of pending as possible and returns the
// unconsumed suffix.
func (s *Session) process(pending []byte) ([]byte, error) {
	if !s.handshake.Done() {
		out, n, err := s.handshake.Consume(pending)
		if len(out) > 0 {
			if _, werr := s.socketw.Write(out); werr != nil {
				return pending, werr
			}
			if werr := s.socketw.Flush(); werr != nil {
				return pending, werr
			}
		}
		if err != nil {
			return pending, err
		}
		pending = pending[n:]
		if !s.handshake.Done() {
			return pending, nil
		}
		s.logger.Debug(fmt.Sprint("session ", s.sessionID, ": handshake complete"))
		// Bytes past the handshake tail in the same read already belong to
		// the chunk stream and count toward the acknowledgement window.
		if len(pending) > 0 {
			if aerr := s.dispatcher.AddInboundBytes(uint32(len(pending))); aerr != nil {
				return pending, aerr
			}
		}
	}

	for {
		msg, n, err := s.chunkReader.Next(pending)
		pending = pending[n:]
		if err != nil {
			return pending, err
		}
		if msg == nil {
			return pending, nil
		}
		events, derr := s.dispatcher.Dispatch(msg)
		for _, event := range events {
			s.emit(event)
		}
		if derr != nil {
			return pending, derr
		}
	}
}

func (s *Session) emit(event Event) {
	switch e := event.(type) {
	case Connected:
		s.logger.Info(fmt.Sprint("session ", s.sessionID, ": connected to app ", e.App))
	case Published:
		s.logger.Info(fmt.Sprint("session ", s.sessionID, ": publishing stream ", e.StreamKey))
	case Warning:
		s.logger.Warn(fmt.Sprint("session ", s.sessionID, ": ", e.Reason))
	}
	if s.handler != nil {
		s.handler.HandleEvent(s.sessionID, event)
	}
}
