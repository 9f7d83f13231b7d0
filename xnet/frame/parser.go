package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// Parser is the per connection decoding state. It accumulates inbound bytes and
// extracts every complete frame on each Feed. A Parser must only be driven by one
// goroutine at a time.
type Parser struct {
	opts    options
	buf     *bytebufferpool.ByteBuffer
	pos     int // consumed prefix of buf.B
	err     error
	scratch []byte
}

func NewParser(opts ...Option) *Parser {
	o := newOptions(opts)
	return &Parser{
		opts:    o,
		scratch: make([]byte, 0, o.signer.Size()),
	}
}

// Feed appends chunk and returns the packets completed by it, in wire order. A frame
// that is not complete yet stays buffered for the next call and is not an error.
//
// Returned payloads alias the parser's buffer and stay valid until the next Feed,
// Reset or Release; use Packet.Clone to keep them longer.
//
// A malformed or corrupt frame returns ErrMalformedFrame (ErrFrameTooLarge) or
// ErrChecksumMismatch together with the packets that preceded it. The error is sticky.
func (p *Parser) Feed(chunk []byte) ([]Packet, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.buf == nil {
		p.buf = bytebufferpool.Get()
	}
	p.compact()
	p.buf.B = append(p.buf.B, chunk...)

	var pkts []Packet
	for {
		pkt, n, err := p.next(p.buf.B[p.pos:])
		if err != nil {
			p.err = err
			return pkts, err
		}
		if n == 0 {
			return pkts, nil
		}
		pkts = append(pkts, pkt)
		p.pos += n
	}
}

// next decodes one frame from the head of data. n == 0 means more bytes are needed.
func (p *Parser) next(data []byte) (pkt Packet, n int, err error) {
	if len(data) == 0 {
		return
	}
	if data[0] != StartMarker {
		err = errors.Wrapf(ErrMalformedFrame, "start marker 0x%02x", data[0])
		return
	}
	if len(data) < HeadLen {
		return
	}
	length := binary.BigEndian.Uint32(data[1:HeadLen])
	if uint64(length) > uint64(p.opts.maxFrameLength) {
		err = errors.Wrapf(ErrFrameTooLarge, "length=%d max=%d", length, p.opts.maxFrameLength)
		return
	}
	sumSize := p.opts.signer.Size()
	payloadEnd := HeadLen + int(length)
	total := payloadEnd + sumSize + 1
	if len(data) < total {
		return
	}
	if data[total-1] != EndMarker {
		err = errors.Wrapf(ErrMalformedFrame, "end marker 0x%02x", data[total-1])
		return
	}
	payload := data[HeadLen:payloadEnd:payloadEnd]
	p.scratch = p.opts.signer.Sign(p.scratch[:0], payload)
	if !bytes.Equal(p.scratch, data[payloadEnd:payloadEnd+sumSize]) {
		err = errors.Wrapf(ErrChecksumMismatch, "length=%d", length)
		return
	}
	return PacketOf(payload), total, nil
}

// compact drops the prefix consumed by the previous batch.
func (p *Parser) compact() {
	if p.pos == 0 {
		return
	}
	n := copy(p.buf.B, p.buf.B[p.pos:])
	p.buf.B = p.buf.B[:n]
	p.pos = 0
}

// Buffered is the number of received bytes not yet resolved into frames.
func (p *Parser) Buffered() int {
	if p.buf == nil {
		return 0
	}
	return len(p.buf.B) - p.pos
}

// Pending returns the unresolved bytes without copying.
func (p *Parser) Pending() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.B[p.pos:]
}

// Err is the sticky decode error, nil while the stream is healthy.
func (p *Parser) Err() error {
	return p.err
}

// Reset clears buffered bytes and the sticky error.
func (p *Parser) Reset() {
	if p.buf != nil {
		p.buf.Reset()
	}
	p.pos = 0
	p.err = nil
}

// Release returns the buffer to the pool. The parser can still be used afterwards.
func (p *Parser) Release() {
	if p.buf != nil {
		bytebufferpool.Put(p.buf)
		p.buf = nil
	}
	p.pos = 0
}
