package rtmp

import (
	"errors"

	"github.com/calderab/rtmp/rand"
)

var ErrUnsupportedRTMPVersion = errors.New("handshake: the version of RTMP is not supported")

const RTMPVersion3 = 3

// handshakeBlockSize is the length of each of C1, C2, S1, and S2.
const handshakeBlockSize = 1536

type handshakeState uint8

const (
	handshakeUninitialized handshakeState = iota
	handshakeWaitC1
	handshakeWaitC2
	handshakeDone
)

// Handshake drives the server side of the RTMP handshake as a pure state
// machine. It performs no I/O: the caller feeds it inbound bytes and writes
// whatever bytes Consume returns back to the peer. The simple (non-digest)
// handshake is used; C1 and C2 content is trusted without verification, which
// is what common publishing clients expect.
type Handshake struct {
	state handshakeState
}

// Done reports whether the handshake has completed. Once true, all further
// inbound bytes belong to the chunk stream.
func (h *Handshake) Done() bool {
	return h.state == handshakeDone
}

// Consume advances the handshake with the bytes in "in". It returns the bytes
// to send to the peer (nil if there is nothing to send yet) and how many
// bytes of "in" it consumed; the caller retains the unconsumed suffix and
// calls Consume again when more data arrives. An error is fatal for the
// connection.
func (h *Handshake) Consume(in []byte) (out []byte, n int, err error) {
	for {
		switch h.state {
		case handshakeUninitialized:
			if len(in) <= n {
				return out, n, nil
			}
			// C0 is a single version byte.
			if in[n] != RTMPVersion3 {
				return nil, n, ErrUnsupportedRTMPVersion
			}
			n++
			h.state = handshakeWaitC1

		case handshakeWaitC1:
			if len(in)-n < handshakeBlockSize {
				return out, n, nil
			}
			c1 := in[n : n+handshakeBlockSize]
			n += handshakeBlockSize

			reply := make([]byte, 1+2*handshakeBlockSize)
			// S0 echoes the version.
			reply[0] = RTMPVersion3
			// S1 carries our time (left at zero) and random data.
			if err := rand.GenerateCryptoSafeRandomData(reply[9 : 1+handshakeBlockSize]); err != nil {
				return nil, n, err
			}
			// S2 echoes C1 verbatim.
			copy(reply[1+handshakeBlockSize:], c1)
			out = append(out, reply...)
			h.state = handshakeWaitC2

		case handshakeWaitC2:
			// C2 is expected to echo S1, but only its length is checked.
			if len(in)-n < handshakeBlockSize {
				return out, n, nil
			}
			n += handshakeBlockSize
			h.state = handshakeDone

		case handshakeDone:
			return out, n, nil
		}
	}
}
