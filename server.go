package rtmp

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/calderab/rtmp/config"
)

// Server accepts publishing clients and runs one Session per connection.
type Server struct {
	Addr string
	// TLSConfig enables RTMPS when non-nil.
	TLSConfig *tls.Config
	Logger    *zap.Logger
	// Validator approves connect/publish requests; nil accepts everything.
	Validator Validator
	// Handler receives every session's events.
	Handler Handler
	// Registry enforces single-publisher stream keys; nil disables it.
	Registry *Registry
}

// Listen starts the server and accepts connections until the listener
// fails. If no Addr (host:port) has been assigned, ":1935" is used.
func (s *Server) Listen() error {
	if s.Addr == "" {
		s.Addr = ":" + config.DefaultPort
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrap(err, "server: listen")
	}
	if s.TLSConfig != nil {
		listener = tls.NewListener(listener, s.TLSConfig)
	}

	s.Logger.Info(fmt.Sprint("server: listening on ", s.Addr))

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.Logger.Error(fmt.Sprint("server: error accepting incoming connection: ", err))
			continue
		}
		s.Logger.Info(fmt.Sprint("server: accepted incoming connection from ", conn.RemoteAddr()))

		go func(conn net.Conn) {
			sess := NewSession(s.Logger, conn, s.Validator, s.Handler, s.Registry)
			s.Logger.Info(fmt.Sprint("server: starting session ", sess.ID()))
			if err := sess.Start(); err != nil {
				s.Logger.Error(fmt.Sprint("server: session ", sess.ID(), " ended with an error: ", err))
				return
			}
			s.Logger.Info(fmt.Sprint("server: session ", sess.ID(), " ended"))
		}(conn)
	}
}
