package frame

import "xwire/xnet/checksum"

// Wire layout: START(1) | LENGTH(4, big endian) | PAYLOAD | CHECKSUM(N) | END(1)
const (
	StartMarker byte = 0x02
	EndMarker   byte = 0x03

	HeadLen = 1 + 4

	DefaultMaxFrameLength = 16 * 1024 * 1024 // 16MB

	// MaxFrameLengthLimit LENGTH 字段能表示的最大值
	MaxFrameLengthLimit uint64 = 1<<32 - 1
)

type options struct {
	signer         checksum.Signer
	maxFrameLength int
}

// Option configures an Encoder or a Parser. Both ends of a connection must agree on
// the signer.
type Option func(*options)

func WithSigner(s checksum.Signer) Option {
	return func(o *options) {
		o.signer = s
	}
}

// WithMaxFrameLength bounds the payload length accepted by the parser and produced by
// the encoder.
func WithMaxFrameLength(n int) Option {
	return func(o *options) {
		o.maxFrameLength = n
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.signer == nil {
		o.signer = checksum.Default()
	}
	if o.maxFrameLength <= 0 || uint64(o.maxFrameLength) > MaxFrameLengthLimit {
		o.maxFrameLength = DefaultMaxFrameLength
	}
	return o
}

// Overhead is the number of bytes a frame adds around its payload.
func Overhead(s checksum.Signer) int {
	return HeadLen + s.Size() + 1
}
