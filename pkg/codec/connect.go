package codec

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// ConnectJSON and ConnectCBOR let Connect handlers and clients exchange
// plain Go structs. ConnectJSON takes the place of the protobuf JSON codec.
type (
	ConnectJSON struct{}
	ConnectCBOR struct{}
)

var (
	_ connect.Codec = ConnectJSON{}
	_ connect.Codec = ConnectCBOR{}
)

func (ConnectJSON) Name() string                       { return "json" }
func (ConnectJSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (ConnectJSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (ConnectCBOR) Name() string                       { return "cbor" }
func (ConnectCBOR) Marshal(v any) ([]byte, error)      { return Marshal(v) }
func (ConnectCBOR) Unmarshal(data []byte, v any) error { return Unmarshal(data, v) }

// ConnectHandlerOptions registers both codecs on a handler.
func ConnectHandlerOptions() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(ConnectJSON{}),
		connect.WithCodec(ConnectCBOR{}),
	}
}
