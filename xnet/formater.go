package xnet

import (
	"github.com/pkg/errors"

	"xwire/xnet/codec"
	"xwire/xnet/frame"
	"xwire/xnet/serialize"
)

const (
	CompressFlag = 1 << iota

	knownFlags = CompressFlag
)

var (
	ErrEmptyPayload = errors.Wrap(frame.ErrMalformedFrame, "payload without flag byte")
	ErrUnknownFlag  = errors.Wrap(frame.ErrMalformedFrame, "unknown payload flag")
)

// Formater payload = flag(1)|body. body 为序列化结果, flag 带 CompressFlag 时 body 已压缩.
type Formater struct {
	serializer serialize.Serializer
	compressor *codec.Compressor
}

// NewFormater nil arguments fall back to the process defaults.
func NewFormater(s serialize.Serializer, c *codec.Compressor) *Formater {
	if s == nil {
		s = serialize.Default()
	}
	if c == nil {
		c = codec.Default()
	}
	return &Formater{serializer: s, compressor: c}
}

func (f *Formater) Serializer() serialize.Serializer {
	return f.serializer
}

func (f *Formater) Compressor() *codec.Compressor {
	return f.compressor
}

// Encode serialize -> compress(按策略) -> packet.
func (f *Formater) Encode(v any) (frame.Packet, error) {
	body, err := f.serializer.Marshal(v)
	if err != nil {
		return frame.Packet{}, err
	}
	return f.EncodeBytes(body)
}

// EncodeBytes 发送已序列化好的 body. 返回的 packet 引用 body, 发送完成前不要修改它.
func (f *Formater) EncodeBytes(body []byte) (frame.Packet, error) {
	out, compressed, err := f.compressor.Compress(body)
	if err != nil {
		return frame.Packet{}, err
	}
	var flag byte
	if compressed {
		flag |= CompressFlag
		stat.compressedOut.Add(1)
	}
	return frame.PacketOf([]byte{flag}, out), nil
}

// DecodeBytes returns the flag and a body owned by the caller (never aliasing the
// parser buffer), decompressed when the peer flagged it.
func (f *Formater) DecodeBytes(p frame.Packet) (byte, []byte, error) {
	data := p.Bytes()
	if len(data) < 1 {
		return 0, nil, ErrEmptyPayload
	}
	flag := data[0]
	if flag&^knownFlags != 0 {
		return flag, nil, errors.Wrapf(ErrUnknownFlag, "flag=%#x", flag)
	}
	if flag&CompressFlag != 0 {
		stat.compressedIn.Add(1)
		body, err := f.compressor.Decompress(data[1:])
		if err != nil {
			return flag, nil, err
		}
		return flag, body, nil
	}
	body := make([]byte, len(data)-1)
	copy(body, data[1:])
	return flag, body, nil
}

func (f *Formater) Decode(p frame.Packet, v any) error {
	_, body, err := f.DecodeBytes(p)
	if err != nil {
		return err
	}
	return f.serializer.Unmarshal(body, v)
}
