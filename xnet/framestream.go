package xnet

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"xwire/xlog"
	"xwire/xnet/frame"
)

const (
	defaultReadBufSize = 4096
	packetSizeWarning  = 64 * 1024 // 64 KB
)

type FrameStreamFactory struct {
	proto       *Protocol
	timeout     time.Duration
	readBufSize int
}

func NewFrameStreamFactory(proto *Protocol, timeout time.Duration, readBufSize int) *FrameStreamFactory {
	if proto == nil {
		proto = NewProtocol(nil)
	}
	if readBufSize <= 0 {
		readBufSize = defaultReadBufSize
	}
	return &FrameStreamFactory{
		proto:       proto,
		timeout:     timeout,
		readBufSize: readBufSize,
	}
}

func (f *FrameStreamFactory) Protocol() *Protocol {
	return f.proto
}

// 面向应用层stream. 把任意切分的字节流还原成一个个 Message.
type FrameStream struct {
	conn    net.Conn
	proto   *Protocol
	timeout time.Duration
	readBuf []byte

	// 只由 Recv 所在协程访问
	parser  *frame.Parser
	pending []frame.Packet
	err     error

	wmu       sync.Mutex
	closeOnce sync.Once
}

// new
func (f *FrameStreamFactory) NewStream(rw net.Conn) Streamer {
	stream := &FrameStream{
		conn:    rw,
		proto:   f.proto,
		timeout: f.timeout,
		readBuf: make([]byte, f.readBufSize),
	}
	if f.timeout != 0 {
		_ = rw.SetDeadline(time.Now().Add(f.timeout))
	}
	return stream
}

// Parser nil until the first chunk arrived.
func (c *FrameStream) Parser() *frame.Parser {
	return c.parser
}

// Recv not goroutine safe. 已解析出的包先于读错误或解析错误返回.
func (c *FrameStream) Recv() (*Message, error) {
	for {
		if len(c.pending) > 0 {
			pkt := c.pending[0]
			c.pending[0] = frame.Packet{}
			c.pending = c.pending[1:]
			if pkt.Len() > packetSizeWarning {
				xlog.Warnf("huge packet: %v bytes", pkt.Len())
			}
			msg, err := c.proto.Unmarshal(pkt)
			if err != nil {
				stat.decodeError(err)
				return nil, err
			}
			return msg, nil
		}
		if c.err != nil {
			c.releaseParser()
			return nil, c.err
		}
		c.fill()
	}
}

// fill 读一次连接并喂给 parser.
func (c *FrameStream) fill() {
	if c.timeout != 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			errNetLog(err, fmt.Sprintf("FrameStream. SetReadDeadline readTimeout err=%v", err))
			c.err = err
			return
		}
	}
	n, err := c.conn.Read(c.readBuf)
	if n > 0 {
		stat.bytesIn.Add(uint64(n))
		if c.parser == nil {
			c.parser = c.proto.NewParser()
		}
		pkts, perr := c.parser.Feed(c.readBuf[:n])
		c.pending = append(c.pending[:0], pkts...)
		stat.framesIn.Add(uint64(len(pkts)))
		if perr != nil {
			stat.decodeError(perr)
			xlog.Errorf("FrameStream %s parse err=%v", c.conn.RemoteAddr(), perr)
			c.err = perr
			return
		}
	}
	if err != nil {
		errNetLog(err, fmt.Sprintf("FrameStream. Read err=%v", err))
		c.err = err
	}
}

func (c *FrameStream) releaseParser() {
	if c.parser != nil {
		c.parser.Release()
		c.parser = nil
	}
}

// Send goroutine safe
func (c *FrameStream) Send(msg any) error {
	pkt, err := c.proto.Encode(msg)
	if err != nil {
		xlog.Errorf("FrameStream Encode err=%v", err)
		return err
	}
	return c.SendPacket(pkt)
}

// SendBytes goroutine safe. body 为已序列化的数据.
func (c *FrameStream) SendBytes(body []byte) error {
	pkt, err := c.proto.EncodeBytes(body)
	if err != nil {
		return err
	}
	return c.SendPacket(pkt)
}

// SendPacket goroutine safe
func (c *FrameStream) SendPacket(pkt frame.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	n, err := c.proto.Encoder().WriteTo(c.conn, pkt)
	if err != nil {
		if errors.Is(err, frame.ErrFrameTooLarge) {
			xlog.Errorf("FrameStream refuse oversize packet: %v bytes", pkt.Len())
		} else {
			errNetLog(err, fmt.Sprintf("FrameStream WriteTo err=%v", err))
		}
		return err
	}
	stat.framesOut.Add(1)
	stat.bytesOut.Add(uint64(n))
	return nil
}

// SendRaw goroutine safe, msg 必须已经是完整帧
func (c *FrameStream) SendRaw(msg []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	if _, err := c.conn.Write(msg); err != nil {
		return err
	}
	stat.framesOut.Add(1)
	stat.bytesOut.Add(uint64(len(msg)))
	return nil
}

func (c *FrameStream) setWriteDeadline() error {
	if c.timeout == 0 {
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		errNetLog(err, fmt.Sprintf("FrameStream SetWriteDeadline err=%v", err))
		return err
	}
	return nil
}

func (c *FrameStream) Close() (err error) {
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return
}
