package codec

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

type Gzip struct{}

func (Gzip) Name() string {
	return "gzip"
}

func (Gzip) UseByteArray() bool {
	return true
}

func (Gzip) Encode(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	w := gzip.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func (Gzip) Decode(dst, src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, corrupt("gzip", err)
	}
	defer r.Close()
	return readAllLimited("gzip", dst, r)
}
