package codec

import (
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var errNilMessage = errors.New("codec: nil message")

// DefaultCodec encodes protobuf messages. Decode falls back to JSON for
// plain Go values.
type DefaultCodec struct{}

func (c *DefaultCodec) Encode(m protoreflect.ProtoMessage, b []byte) ([]byte, error) {
	if m == nil {
		return b, errNilMessage
	}
	return proto.MarshalOptions{}.MarshalAppend(b, m)
}

func (c *DefaultCodec) Decode(a any, b []byte) error {
	switch m := a.(type) {
	case nil:
		return errNilMessage
	case protoreflect.ProtoMessage:
		return proto.UnmarshalOptions{}.Unmarshal(b, m)
	default:
		return json.Unmarshal(b, a)
	}
}
