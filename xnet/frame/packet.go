package frame

// Segment is a read-only view over part of a byte buffer. It never copies and must not
// be written through.
type Segment struct {
	b []byte
}

// NewSegment views buf[off:off+n].
func NewSegment(buf []byte, off, n int) Segment {
	end := off + n
	return Segment{b: buf[off:end:end]}
}

// SegmentOf views the whole of b.
func SegmentOf(b []byte) Segment {
	return Segment{b: b[:len(b):len(b)]}
}

func (s Segment) Len() int {
	return len(s.b)
}

func (s Segment) Bytes() []byte {
	return s.b
}

// Packet is one logical unit of transmission, possibly scattered over several
// segments. Its length is fixed when the packet is built.
type Packet struct {
	segs []Segment
	size int
}

func NewPacket(segs ...Segment) Packet {
	size := 0
	for _, s := range segs {
		size += s.Len()
	}
	return Packet{segs: segs, size: size}
}

// PacketOf builds a packet with one segment per buffer, in order.
func PacketOf(bufs ...[]byte) Packet {
	segs := make([]Segment, 0, len(bufs))
	for _, b := range bufs {
		segs = append(segs, SegmentOf(b))
	}
	return NewPacket(segs...)
}

// Len is the total payload length.
func (p Packet) Len() int {
	return p.size
}

func (p Packet) Segments() []Segment {
	return p.segs
}

// Bytes returns the payload as one slice. A single segment packet is returned without
// copying.
func (p Packet) Bytes() []byte {
	switch len(p.segs) {
	case 0:
		return []byte{}
	case 1:
		return p.segs[0].b
	}
	out := make([]byte, 0, p.size)
	for _, s := range p.segs {
		out = append(out, s.b...)
	}
	return out
}

// Clone returns a single segment packet that owns a private copy of the payload.
// Packets produced by a Parser must be cloned to outlive the next Feed call.
func (p Packet) Clone() Packet {
	out := make([]byte, 0, p.size)
	for _, s := range p.segs {
		out = append(out, s.b...)
	}
	return PacketOf(out)
}

func (p Packet) buffers() [][]byte {
	bufs := make([][]byte, len(p.segs))
	for i, s := range p.segs {
		bufs[i] = s.b
	}
	return bufs
}
