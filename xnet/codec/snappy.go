package codec

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Snappy block format.
type Snappy struct{}

func (Snappy) Name() string {
	return "snappy"
}

func (Snappy) UseByteArray() bool {
	return true
}

func (Snappy) Encode(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (Snappy) Decode(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, corrupt("snappy", err)
	}
	if n > maxDecodedSize {
		return nil, errors.Wrapf(ErrTooLarge, "snappy decoded len=%d", n)
	}
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, corrupt("snappy", err)
	}
	return out, nil
}
