package serialize

import "github.com/hashicorp/go-msgpack/v2/codec"

type Msgpack struct {
	handle *codec.MsgpackHandle
}

func NewMsgpack() *Msgpack {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	return &Msgpack{handle: h}
}

func (m *Msgpack) Name() string {
	return "msgpack"
}

func (m *Msgpack) Marshal(v any) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, m.handle).Encode(v); err != nil {
		return nil, marshalErr("msgpack", err)
	}
	return b, nil
}

func (m *Msgpack) Unmarshal(data []byte, v any) error {
	if err := codec.NewDecoderBytes(data, m.handle).Decode(v); err != nil {
		return unmarshalErr("msgpack", err)
	}
	return nil
}
