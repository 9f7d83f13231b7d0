package xnet

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bmizerany/pat"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"xwire/xlog"
)

var errListenerClosed = errors.New("websocket listener closed")

// wsConn 把 websocket 连接适配成 net.Conn. 每个 binary message 视为一段字节流,
// 消息边界和帧边界无关.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(b []byte) (int, error) {
	for {
		if c.reader == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}
		n, err := c.reader.Read(b)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write 一次调用一个 binary message.
func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

// wsListener 通过 http upgrade 接收连接, 对 server 表现为普通 net.Listener.
type wsListener struct {
	inner     net.Listener
	httpSrv   *http.Server
	upgrader  websocket.Upgrader
	accepted  chan net.Conn
	closeSig  chan struct{}
	closeOnce sync.Once
}

func newWSListener(network, addr, path string) (*wsListener, error) {
	inner, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	l := &wsListener{
		inner: inner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		accepted: make(chan net.Conn, 128),
		closeSig: make(chan struct{}),
	}
	m := pat.New()
	m.Get(path, http.HandlerFunc(l.upgrade))
	l.httpSrv = &http.Server{Handler: m, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := l.httpSrv.Serve(inner); err != nil && err != http.ErrServerClosed {
			xlog.Errorf("websocket http serve err=%v", err)
		}
	}()
	return l, nil
}

func (l *wsListener) upgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		xlog.Warnf("websocket upgrade from %s err=%v", r.RemoteAddr, err)
		return
	}
	select {
	case l.accepted <- newWSConn(ws):
	case <-l.closeSig:
		_ = ws.Close()
	}
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-l.closeSig:
		return nil, errListenerClosed
	}
}

func (l *wsListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeSig)
		_ = l.httpSrv.Close()
	})
	return nil
}

func (l *wsListener) Addr() net.Addr {
	return l.inner.Addr()
}

// new websocket server
func NewWSServer(cfg *ServerConfig) (Server, error) {
	if err := checkServerConfig(cfg); err != nil {
		return nil, err
	}
	l, err := newWSListener(cfg.Network, cfg.Addr, cfg.WSPath)
	if err != nil {
		xlog.Errorf("listen error on %s, err=%v", cfg.Addr, err)
		return nil, errors.Wrapf(err, "ws listen %s", cfg.Addr)
	}
	xlog.InfoF("listen on ws://%s%s", l.Addr(), cfg.WSPath)

	s := newServer(cfg, l, "WS")
	go s.serve()
	return s, nil
}

type wsDialer struct {
	c *Client
}

// Addr 为完整 url, 如 ws://127.0.0.1:8080/ws
func (d *wsDialer) dial() (net.Conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = d.c.Timeout
	ws, _, err := dialer.Dial(d.c.Addr, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(ws), nil
}
