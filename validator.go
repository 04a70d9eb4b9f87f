package rtmp

import "github.com/calderab/rtmp/amf/amf0"

// Validator approves or rejects the requests a publishing client makes. The
// dispatcher calls it synchronously; a non-nil error becomes a
// protocol-level error reply to the peer. Connect and publish rejections end
// the connection.
type Validator interface {
	ValidateConnect(app string, info amf0.Object) error
	ValidateReleaseStream(streamKey string) error
	ValidatePublish(app string, streamKey string, publishingType string) error
	ValidateSetDataFrame(values []interface{}) error
}

// AcceptAll is the default policy: every request is approved.
type AcceptAll struct{}

func (AcceptAll) ValidateConnect(string, amf0.Object) error    { return nil }
func (AcceptAll) ValidateReleaseStream(string) error           { return nil }
func (AcceptAll) ValidatePublish(string, string, string) error { return nil }
func (AcceptAll) ValidateSetDataFrame([]interface{}) error     { return nil }
