package config

const DefaultPort = "1935"

const BufioSize = 1024 * 64

// DefaultClientWindowSize is the window acknowledgement size offered to publishing clients.
const DefaultClientWindowSize uint32 = 2500000

// DefaultChunkSize is the chunk size the server switches to after connect.
// The protocol-mandated initial size is 128 (rtmp.DefaultReadChunkSize).
const DefaultChunkSize uint32 = 4096

const DefaultPublishStream uint32 = 0

const DefaultStreamID int = 1

const FlashMediaServerVersion string = "FMS/3,5,7,7009"

const Capabilities int = 31

const Mode int = 1
