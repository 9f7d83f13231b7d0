package codec

import (
	"sync"
	"sync/atomic"
)

const (
	DefaultMinSize = 100 * 1024 // 压缩阈值. payload严格大于该值才压缩
)

// Compressor applies the size gated compression policy around a Codec.
// It is immutable after construction and shared by all connections.
type Compressor struct {
	codec   Codec
	enabled bool
	minSize int
}

func NewCompressor(c Codec, enabled bool, minSize int) *Compressor {
	if c == nil {
		c = None{}
	}
	if minSize < 0 {
		minSize = 0
	}
	return &Compressor{codec: c, enabled: enabled, minSize: minSize}
}

func (c *Compressor) Codec() Codec {
	return c.codec
}

func (c *Compressor) Enabled() bool {
	return c.enabled
}

func (c *Compressor) MinSize() int {
	return c.minSize
}

// ShouldCompress enabled && size > minSize.
func (c *Compressor) ShouldCompress(size int) bool {
	return c.enabled && size > c.minSize
}

// Compress returns the compressed payload and true, or src unchanged and false when
// the policy says no.
func (c *Compressor) Compress(src []byte) ([]byte, bool, error) {
	if !c.ShouldCompress(len(src)) {
		return src, false, nil
	}
	out, err := c.codec.Encode(nil, src)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Decompress reverses Compress for a payload the peer marked as compressed.
func (c *Compressor) Decompress(src []byte) ([]byte, error) {
	return c.codec.Decode(nil, src)
}

var (
	defaultOnce       sync.Once
	defaultCompressor atomic.Pointer[Compressor]
)

// SetDefault installs the process wide compressor. Call it during startup, before any
// traffic; a later call simply replaces the previous value.
func SetDefault(c *Compressor) {
	defaultCompressor.Store(c)
}

// Default returns the process wide compressor, building the snappy/disabled one on
// first use when nothing was installed.
func Default() *Compressor {
	if c := defaultCompressor.Load(); c != nil {
		return c
	}
	defaultOnce.Do(func() {
		defaultCompressor.CompareAndSwap(nil, NewCompressor(Snappy{}, false, DefaultMinSize))
	})
	return defaultCompressor.Load()
}
