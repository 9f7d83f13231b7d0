package xnet

import (
	"net"

	"github.com/pkg/errors"
	"github.com/xtaci/kcp-go"

	"xwire/xlog"
)

// KCP 以 stream 模式运行, 帧被拆成任意大小的片段送达, 正好交给 parser 重组.
func tuneKCP(conn net.Conn) net.Conn {
	kcpConn, ok := conn.(*kcp.UDPSession)
	if !ok {
		return conn
	}
	kcpConn.SetNoDelay(0, 40, 0, 0)
	kcpConn.SetStreamMode(true)
	kcpConn.SetWindowSize(256, 256)
	// According to IEEE 802.3 & IEEE 802.11, 1492 bytes is The maximum MTU for ethernet and WIFI.
	// UDP/IPv4 overhead is 28 bytes per packet.
	kcpConn.SetMtu(1200)
	return kcpConn
}

// new kcp server
func NewKcpServer(cfg *ServerConfig) (Server, error) {
	if err := checkServerConfig(cfg); err != nil {
		return nil, err
	}
	l, err := kcp.Listen(cfg.Addr)
	if err != nil {
		xlog.Errorf("listen error on %s, err=%v", cfg.Addr, err)
		return nil, errors.Wrapf(err, "kcp listen %s", cfg.Addr)
	}
	xlog.InfoF("listen on kcp://%s", l.Addr())

	s := newServer(cfg, l, "KCP")
	s.tune = tuneKCP
	go s.serve()
	return s, nil
}

type kcpDialer struct {
	c *Client
}

func (d *kcpDialer) dial() (net.Conn, error) {
	conn, err := kcp.Dial(d.c.Addr)
	if err != nil {
		return nil, err
	}
	conn = tuneKCP(conn)
	if kcpConn, ok := conn.(*kcp.UDPSession); ok {
		_ = kcpConn.SetDSCP(46)
	}
	return conn, nil
}
