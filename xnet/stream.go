package xnet

import (
	"net"

	"xwire/xnet/frame"
)

// stream interface. 对socket的封装.
type Streamer interface {
	Recv() (*Message, error)
	Send(any) error
	SendBytes([]byte) error
	SendPacket(frame.Packet) error
	SendRaw([]byte) error
	Close() error
}

// stream 工厂 interface
type StreamFactory interface {
	NewStream(conn net.Conn) Streamer
	Protocol() *Protocol
}
