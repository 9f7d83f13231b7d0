package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// LZ4 frame format, self describing so no size needs to travel beside it.
type LZ4 struct{}

func (LZ4) Name() string {
	return "lz4"
}

func (LZ4) UseByteArray() bool {
	return true
}

func (LZ4) Encode(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	w := lz4.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "lz4 write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 close")
	}
	return buf.Bytes(), nil
}

func (LZ4) Decode(dst, src []byte) ([]byte, error) {
	return readAllLimited("lz4", dst, lz4.NewReader(bytes.NewReader(src)))
}

func readAllLimited(name string, dst []byte, r io.Reader) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	n, err := buf.ReadFrom(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, corrupt(name, err)
	}
	if n > maxDecodedSize {
		return nil, errors.Wrapf(ErrTooLarge, "%s decoded len>%d", name, maxDecodedSize)
	}
	return buf.Bytes(), nil
}
