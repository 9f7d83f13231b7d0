package codec

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Zstd holds one encoder and one decoder. Both support concurrent EncodeAll and
// DecodeAll calls.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstd() *Zstd {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(errors.Wrap(err, "zstd.NewWriter"))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(errors.Wrap(err, "zstd.NewReader"))
	}
	return &Zstd{enc: enc, dec: dec}
}

func (z *Zstd) Name() string {
	return "zstd"
}

func (z *Zstd) UseByteArray() bool {
	return true
}

func (z *Zstd) Encode(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst[:0]), nil
}

func (z *Zstd) Decode(dst, src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, corrupt("zstd", err)
	}
	return out, nil
}
