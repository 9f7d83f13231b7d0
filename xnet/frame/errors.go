package frame

import "github.com/pkg/errors"

// Decode failures. Both are fatal for the stream: the parser keeps returning the same
// error and never resynchronises on its own.
var (
	ErrMalformedFrame   = errors.New("frame: malformed frame")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
)

// ErrFrameTooLarge is a malformed frame whose LENGTH exceeds the configured maximum.
var ErrFrameTooLarge = errors.Wrap(ErrMalformedFrame, "length exceeds max frame length")
