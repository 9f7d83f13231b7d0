package checksum

import (
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var (
	ErrUnknownSigner = errors.New("checksum: unknown signer")
)

// Signer computes the fixed-size trailer written after every frame payload.
// Encoder and parser of one endpoint must share the same Signer.
type Signer interface {
	Name() string
	// Size is the number of trailer bytes Sign appends.
	Size() int
	// Sign appends the signature of the concatenated segments to dst.
	Sign(dst []byte, segs ...[]byte) []byte
}

var (
	_ Signer = CRC32{}
	_ Signer = XXHash64{}
)

// CRC32 IEEE, 4 bytes big endian.
type CRC32 struct{}

func (CRC32) Name() string {
	return "crc32"
}

func (CRC32) Size() int {
	return 4
}

func (CRC32) Sign(dst []byte, segs ...[]byte) []byte {
	var sum uint32
	for _, seg := range segs {
		sum = crc32.Update(sum, crc32.IEEETable, seg)
	}
	return binary.BigEndian.AppendUint32(dst, sum)
}

// XXHash64 8 bytes big endian.
type XXHash64 struct{}

func (XXHash64) Name() string {
	return "xxhash"
}

func (XXHash64) Size() int {
	return 8
}

func (XXHash64) Sign(dst []byte, segs ...[]byte) []byte {
	if len(segs) == 1 {
		return binary.BigEndian.AppendUint64(dst, xxhash.Sum64(segs[0]))
	}
	d := xxhash.New()
	for _, seg := range segs {
		_, _ = d.Write(seg)
	}
	return binary.BigEndian.AppendUint64(dst, d.Sum64())
}

// Default signer used when none is configured.
func Default() Signer {
	return CRC32{}
}

// Lookup resolves a configured signer name. Empty means Default.
func Lookup(name string) (Signer, error) {
	switch strings.ToLower(name) {
	case "", "crc32":
		return CRC32{}, nil
	case "xxhash", "xxhash64":
		return XXHash64{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownSigner, "name=%s", name)
	}
}
