package codec

// None leaves payloads untouched.
type None struct{}

func (None) Name() string {
	return "none"
}

func (None) UseByteArray() bool {
	return false
}

func (None) Encode(dst, src []byte) ([]byte, error) {
	return src, nil
}

// Decode copies src into dst so the result never aliases the input.
func (None) Decode(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}
