package codec

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	// maxDecodedSize bounds decompression output so a hostile peer cannot inflate a
	// small frame into unbounded memory.
	maxDecodedSize = 64 * 1024 * 1024
)

var (
	ErrCorrupt      = errors.New("codec: corrupt compressed input")
	ErrTooLarge     = errors.New("codec: decoded size limit exceeded")
	ErrUnknownCodec = errors.New("codec: unknown codec")
)

// Codec compresses and decompresses payload bytes. Implementations are stateless
// from the caller's point of view and safe for concurrent use.
type Codec interface {
	Name() string
	// UseByteArray reports whether the codec works on the byte slice directly.
	// It is a hint only, the Compressor gates decide whether Encode runs.
	UseByteArray() bool
	// Encode returns the compressed form of src. dst is reused when large enough.
	Encode(dst, src []byte) ([]byte, error)
	// Decode returns the decompressed form of src. Malformed input wraps ErrCorrupt.
	Decode(dst, src []byte) ([]byte, error)
}

// New returns the codec registered under encode, nil when unknown.
func New(encode string) Codec {
	switch strings.ToLower(encode) {
	case "none", "":
		return None{}
	case "snappy":
		return Snappy{}
	case "lz4":
		return LZ4{}
	case "zstd":
		return sharedZstd()
	case "gzip":
		return Gzip{}
	default:
		return nil
	}
}

// Lookup is New with an error for unknown names.
func Lookup(encode string) (Codec, error) {
	c := New(encode)
	if c == nil {
		return nil, errors.Wrapf(ErrUnknownCodec, "name=%s", encode)
	}
	return c, nil
}

func corrupt(name string, err error) error {
	return errors.Wrapf(ErrCorrupt, "%s: %v", name, err)
}

// sharedZstd 编解码器可并发使用, 进程内只建一份.
var sharedZstd = sync.OnceValue(NewZstd)
