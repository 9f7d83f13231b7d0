package frame

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
	"xwire/xnet/checksum"
)

// Encoder turns packets into wire frames. It holds no mutable state and may be shared
// by any number of goroutines.
type Encoder struct {
	opts options
}

func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{opts: newOptions(opts)}
}

func (e *Encoder) Signer() checksum.Signer {
	return e.opts.signer
}

func (e *Encoder) MaxFrameLength() int {
	return e.opts.maxFrameLength
}

// FrameSize is the encoded size of p.
func (e *Encoder) FrameSize(p Packet) int {
	return p.Len() + Overhead(e.opts.signer)
}

// AppendFrame appends the frame of p to dst. Segments are written in order and the
// checksum covers their concatenation.
func (e *Encoder) AppendFrame(dst []byte, p Packet) ([]byte, error) {
	if p.Len() > e.opts.maxFrameLength {
		return dst, errors.Wrapf(ErrFrameTooLarge, "length=%d max=%d", p.Len(), e.opts.maxFrameLength)
	}
	dst = append(dst, StartMarker)
	dst = binary.BigEndian.AppendUint32(dst, uint32(p.Len()))
	for _, s := range p.segs {
		dst = append(dst, s.b...)
	}
	dst = e.opts.signer.Sign(dst, p.buffers()...)
	dst = append(dst, EndMarker)
	return dst, nil
}

// Encode returns a newly allocated frame of exactly FrameSize bytes.
func (e *Encoder) Encode(p Packet) ([]byte, error) {
	return e.AppendFrame(make([]byte, 0, e.FrameSize(p)), p)
}

// WriteTo encodes p into a pooled scratch buffer and writes it to w in one call.
func (e *Encoder) WriteTo(w io.Writer, p Packet) (int, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	var err error
	buf.B, err = e.AppendFrame(buf.B[:0], p)
	if err != nil {
		return 0, err
	}
	return w.Write(buf.B)
}
