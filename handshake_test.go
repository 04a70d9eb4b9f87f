package rtmp

import (
	"bytes"
	"testing"
)

func TestHandshake(t *testing.T) {
	var h Handshake

	c0c1 := make([]byte, 1+handshakeBlockSize)
	c0c1[0] = RTMPVersion3
	out, n, err := h.Consume(c0c1)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(c0c1) {
		t.Fatalf("consumed %d of %d bytes", n, len(c0c1))
	}
	if len(out) != 1+2*handshakeBlockSize {
		t.Fatalf("s0+s1+s2 length = %d, want %d", len(out), 1+2*handshakeBlockSize)
	}
	if out[0] != RTMPVersion3 {
		t.Errorf("s0 = %d, want %d", out[0], RTMPVersion3)
	}
	if !bytes.Equal(out[1+handshakeBlockSize:], c0c1[1:]) {
		t.Error("s2 does not echo c1")
	}
	if h.Done() {
		t.Fatal("handshake done before c2")
	}

	c2 := make([]byte, handshakeBlockSize)
	out, n, err = h.Consume(c2)
	if err != nil {
		t.Fatal(err)
	}
	if n != handshakeBlockSize {
		t.Fatalf("consumed %d of %d bytes", n, handshakeBlockSize)
	}
	if len(out) != 0 {
		t.Errorf("unexpected output after c2: %d bytes", len(out))
	}
	if !h.Done() {
		t.Fatal("handshake not done after c2")
	}
}

// The handshake must behave identically no matter how the input is split.
func TestHandshakeFragmented(t *testing.T) {
	var h Handshake

	input := make([]byte, 1+2*handshakeBlockSize)
	input[0] = RTMPVersion3

	var sent []byte
	var pending []byte
	for _, b := range input {
		pending = append(pending, b)
		out, n, err := h.Consume(pending)
		if err != nil {
			t.Fatal(err)
		}
		sent = append(sent, out...)
		pending = pending[n:]
	}
	if !h.Done() {
		t.Fatal("handshake not done")
	}
	if len(pending) != 0 {
		t.Errorf("%d bytes left unconsumed", len(pending))
	}
	if len(sent) != 1+2*handshakeBlockSize {
		t.Errorf("s0+s1+s2 length = %d, want %d", len(sent), 1+2*handshakeBlockSize)
	}
}

func TestHandshakeBadVersion(t *testing.T) {
	var h Handshake
	if _, _, err := h.Consume([]byte{6}); err != ErrUnsupportedRTMPVersion {
		t.Fatalf("expected ErrUnsupportedRTMPVersion, got %v", err)
	}
}
