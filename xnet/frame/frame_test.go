package frame

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xwire/xnet/checksum"
)

func mustEncode(t *testing.T, e *Encoder, p Packet) []byte {
	t.Helper()
	b, err := e.Encode(p)
	require.NoError(t, err)
	return b
}

func payloads(pkts []Packet) [][]byte {
	out := make([][]byte, len(pkts))
	for i, p := range pkts {
		out[i] = append([]byte{}, p.Bytes()...)
	}
	return out
}

func TestEncodeLayout(t *testing.T) {
	e := NewEncoder()
	frame := mustEncode(t, e, PacketOf([]byte("he"), []byte("llo")))

	require.Len(t, frame, 5+HeadLen+4+1)
	assert.Equal(t, StartMarker, frame[0])
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(frame[1:5]))
	assert.Equal(t, []byte("hello"), frame[5:10])
	assert.Equal(t, checksum.CRC32{}.Sign(nil, []byte("hello")), frame[10:14])
	assert.Equal(t, EndMarker, frame[14])
	assert.Equal(t, len(frame), e.FrameSize(PacketOf([]byte("hello"))))
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, signer := range []checksum.Signer{checksum.CRC32{}, checksum.XXHash64{}} {
		e := NewEncoder(WithSigner(signer))
		for _, size := range []int{1, 2, 5, 6, 255, 4096, 70000} {
			data := make([]byte, size)
			rnd.Read(data)
			// scatter over three segments
			a, b := size/3, 2*size/3
			p := NewPacket(NewSegment(data, 0, a), NewSegment(data, a, b-a), NewSegment(data, b, size-b))
			require.Equal(t, size, p.Len())

			parser := NewParser(WithSigner(signer))
			pkts, err := parser.Feed(mustEncode(t, e, p))
			require.NoError(t, err)
			require.Len(t, pkts, 1)
			assert.Equal(t, data, pkts[0].Bytes(), "signer=%s size=%d", signer.Name(), size)
			assert.Equal(t, 0, parser.Buffered())
		}
	}
}

func TestZeroLengthPayload(t *testing.T) {
	e := NewEncoder()
	frame := mustEncode(t, e, NewPacket())
	require.Len(t, frame, Overhead(e.Signer()))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(frame[1:5]))

	pkts, err := NewParser().Feed(frame)
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.Equal(t, 0, pkts[0].Len())
	assert.Empty(t, pkts[0].Bytes())
}

func TestSplitFeedEveryBoundary(t *testing.T) {
	e := NewEncoder()
	want := []byte("split me anywhere you like")
	frame := mustEncode(t, e, PacketOf(want))
	for i := 1; i < len(frame); i++ {
		parser := NewParser()
		pkts, err := parser.Feed(frame[:i])
		require.NoError(t, err)
		require.Empty(t, pkts, "split=%d", i)
		assert.Equal(t, frame[:i], parser.Pending())

		pkts, err = parser.Feed(frame[i:])
		require.NoError(t, err)
		require.Len(t, pkts, 1, "split=%d", i)
		assert.Equal(t, want, pkts[0].Bytes())
	}
}

func TestByteAtATime(t *testing.T) {
	e := NewEncoder(WithSigner(checksum.XXHash64{}))
	var stream []byte
	want := [][]byte{[]byte("one"), {}, []byte("three")}
	for _, w := range want {
		stream = append(stream, mustEncode(t, e, PacketOf(w))...)
	}

	parser := NewParser(WithSigner(checksum.XXHash64{}))
	var got [][]byte
	for i := range stream {
		pkts, err := parser.Feed(stream[i : i+1])
		require.NoError(t, err)
		got = append(got, payloads(pkts)...)
	}
	assert.Equal(t, want, got)
}

func TestRandomPartitions(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	e := NewEncoder()
	var want [][]byte
	var stream []byte
	for i := 0; i < 50; i++ {
		data := make([]byte, rnd.Intn(600))
		rnd.Read(data)
		want = append(want, data)
		stream = append(stream, mustEncode(t, e, PacketOf(data))...)
	}

	for round := 0; round < 20; round++ {
		parser := NewParser()
		var got [][]byte
		for rest := stream; len(rest) > 0; {
			n := 1 + rnd.Intn(len(rest))
			if n > 97 {
				n = 1 + n%97
			}
			pkts, err := parser.Feed(rest[:n])
			require.NoError(t, err)
			got = append(got, payloads(pkts)...)
			rest = rest[n:]
		}
		require.Equal(t, len(want), len(got))
		for i := range want {
			assert.True(t, bytes.Equal(want[i], got[i]), "round=%d packet=%d", round, i)
		}
	}
}

func TestMultiFrameBatch(t *testing.T) {
	e := NewEncoder()
	p1, p2, p3 := []byte("first"), []byte("second"), []byte("third")
	stream := append(mustEncode(t, e, PacketOf(p1)), mustEncode(t, e, PacketOf(p2))...)
	stream = append(stream, mustEncode(t, e, PacketOf(p3))...)

	// trailing partial frame stays buffered
	tail := mustEncode(t, e, PacketOf([]byte("fourth")))
	parser := NewParser()
	pkts, err := parser.Feed(append(stream, tail[:7]...))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{p1, p2, p3}, payloads(pkts))
	assert.Equal(t, tail[:7], parser.Pending())

	pkts, err = parser.Feed(tail[7:])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("fourth")}, payloads(pkts))
}

func TestChecksumTamper(t *testing.T) {
	e := NewEncoder()
	payload := []byte("integrity matters")
	frame := mustEncode(t, e, PacketOf(payload))
	end := len(frame) - 1 // payload and checksum region is [HeadLen, end)
	for i := HeadLen; i < end; i++ {
		for bit := 0; bit < 8; bit++ {
			bad := append([]byte{}, frame...)
			bad[i] ^= 1 << bit
			pkts, err := NewParser().Feed(bad)
			require.Error(t, err, "byte=%d bit=%d", i, bit)
			assert.True(t, errors.Is(err, ErrChecksumMismatch), "byte=%d bit=%d err=%v", i, bit, err)
			assert.Empty(t, pkts)
		}
	}
}

func TestMarkers(t *testing.T) {
	e := NewEncoder()
	frame := mustEncode(t, e, PacketOf([]byte("x")))

	bad := append([]byte{}, frame...)
	bad[0] = 0x7f
	_, err := NewParser().Feed(bad)
	assert.True(t, errors.Is(err, ErrMalformedFrame))

	bad = append([]byte{}, frame...)
	bad[len(bad)-1] = 0x00
	_, err = NewParser().Feed(bad)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.False(t, errors.Is(err, ErrChecksumMismatch))
}

func TestOversizedLength(t *testing.T) {
	parser := NewParser(WithMaxFrameLength(1024))
	head := []byte{StartMarker, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(head[1:], 1025)
	pkts, err := parser.Feed(head)
	assert.Empty(t, pkts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.LessOrEqual(t, parser.Buffered(), len(head))

	binary.BigEndian.PutUint32(head[1:], 0xffffffff)
	_, err = NewParser().Feed(head)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))

	// exactly the max is fine, it just waits for the rest
	binary.BigEndian.PutUint32(head[1:], 1024)
	pkts, err = NewParser(WithMaxFrameLength(1024)).Feed(head)
	assert.NoError(t, err)
	assert.Empty(t, pkts)
}

func TestEncoderRefusesOversized(t *testing.T) {
	e := NewEncoder(WithMaxFrameLength(4))
	_, err := e.Encode(PacketOf([]byte("12345")))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
	_, err = e.Encode(PacketOf([]byte("1234")))
	assert.NoError(t, err)
}

func TestErrorIsSticky(t *testing.T) {
	e := NewEncoder()
	good := mustEncode(t, e, PacketOf([]byte("good")))
	corrupt := mustEncode(t, e, PacketOf([]byte("bad")))
	corrupt[HeadLen] ^= 0xff

	parser := NewParser()
	pkts, err := parser.Feed(append(append([]byte{}, good...), corrupt...))
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.Equal(t, [][]byte{[]byte("good")}, payloads(pkts))

	pkts, err = parser.Feed(good)
	assert.Empty(t, pkts)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.Equal(t, err, parser.Err())

	parser.Reset()
	pkts, err = parser.Feed(good)
	require.NoError(t, err)
	assert.Len(t, pkts, 1)
}

func TestCloneOutlivesFeed(t *testing.T) {
	e := NewEncoder()
	parser := NewParser()
	pkts, err := parser.Feed(mustEncode(t, e, PacketOf([]byte("aaaa"))))
	require.NoError(t, err)
	kept := pkts[0].Clone()

	_, err = parser.Feed(mustEncode(t, e, PacketOf([]byte("bbbb"))))
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), kept.Bytes())
}

func TestReleaseAndReuse(t *testing.T) {
	e := NewEncoder()
	frame := mustEncode(t, e, PacketOf([]byte("pooled")))
	parser := NewParser()
	_, err := parser.Feed(frame[:3])
	require.NoError(t, err)
	parser.Release()
	assert.Equal(t, 0, parser.Buffered())

	pkts, err := parser.Feed(frame)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("pooled")}, payloads(pkts))
}

func TestWriteTo(t *testing.T) {
	e := NewEncoder()
	var buf bytes.Buffer
	n, err := e.WriteTo(&buf, PacketOf([]byte("ab"), []byte("cd")))
	require.NoError(t, err)
	assert.Equal(t, e.FrameSize(PacketOf([]byte("abcd"))), n)
	assert.Equal(t, mustEncode(t, e, PacketOf([]byte("abcd"))), buf.Bytes())
}

func TestSignerMismatchDetected(t *testing.T) {
	frame := mustEncode(t, NewEncoder(WithSigner(checksum.XXHash64{})), PacketOf([]byte("payload")))
	_, err := NewParser().Feed(frame)
	require.Error(t, err)
}
