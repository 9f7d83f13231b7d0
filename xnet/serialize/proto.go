package serialize

import (
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// Proto handles gogo/protobuf generated messages only.
type Proto struct{}

func (Proto) Name() string {
	return "proto"
}

func (Proto) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Wrapf(ErrNotProto, "%T", v)
	}
	b, err := proto.Marshal(m)
	if err != nil {
		return nil, marshalErr("proto", err)
	}
	return b, nil
}

func (Proto) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return errors.Wrapf(ErrNotProto, "%T", v)
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return unmarshalErr("proto", err)
	}
	return nil
}
