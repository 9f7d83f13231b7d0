package xnet

/*
	client.go: 主动连接端. 断线后按 RetryInterval 重连, 重连成功以 reopen 事件通知.
*/

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"xwire/xlog"
)

type TransmitProto int

const (
	ProtocolTCP = TransmitProto(iota)
	ProtocolKCP
	ProtocolWS
)

func ParseTransmitProto(s string) (TransmitProto, error) {
	switch s {
	case "", "tcp":
		return ProtocolTCP, nil
	case "kcp":
		return ProtocolKCP, nil
	case "ws":
		return ProtocolWS, nil
	}
	return 0, errors.Errorf("unknown transmit protocol %q", s)
}

func (p TransmitProto) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolKCP:
		return "kcp"
	case ProtocolWS:
		return "ws"
	}
	return fmt.Sprintf("TransmitProto(%d)", int(p))
}

type ClientConfig struct {
	Protocol      TransmitProto
	Network       string
	Addr          string
	PostEvent     bool
	Handler       SessionEventHandler
	Factory       StreamFactory
	QueueBufLen   int
	UserData      any
	Timeout       time.Duration
	RetryInterval time.Duration
}

func checkClientConfig(cfg *ClientConfig) error {
	if cfg.Handler == nil {
		return errors.New("xnet: ClientConfig.Handler is nil")
	}
	if cfg.Factory == nil {
		cfg.Factory = NewFrameStreamFactory(nil, 0, 0)
	}
	if cfg.PostEvent {
		if cfg.QueueBufLen == 0 {
			cfg.QueueBufLen = 1024
		}
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second * 15
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	return nil
}

type clientDialer interface {
	dial() (net.Conn, error)
}

type Client struct {
	clientDialer
	*Session
	*ClientConfig
	evChan    chan *SessionEvent
	reopen    bool
	destroyed atomic.Bool
	// for optimize
	creator sessionEventSyncCreator
}

func (c *Client) post(ev *SessionEvent) {
	if c.PostEvent {
		c.evChan <- ev
		return
	}
	switch ev.evType {
	case sessionOpen:
		c.Handler.OnOpen(ev.session, false)
	case sessionReopen:
		c.Handler.OnOpen(ev.session, true)
	case sessionClose:
		c.Handler.OnClose(ev.session)
	case sessionData:
		c.Handler.OnMessage(ev.session, ev.msg)
	}
}

func (c *Client) postMsgEvent(msg *Message) {
	if c.PostEvent {
		ev := c.creator.newSessionEvent()
		ev.session = c.Session
		ev.evType = sessionData
		ev.msg = msg
		c.evChan <- ev
	} else {
		c.Handler.OnMessage(c.Session, msg)
	}
}

func (c *Client) ProcessEvent() bool {
	return processEvents(c.evChan, c.Handler)
}

func (c *Client) Close() {
	if c.destroyed.Swap(true) {
		return
	}
	_ = c.Session.Close()
	c.Session.destroy()
}

func (c *Client) Destroyed() bool {
	return c.destroyed.Load()
}

func (c *Client) keepConnect() {
	for !c.destroyed.Load() {
		if !c.connect() {
			time.Sleep(c.RetryInterval)
			continue
		}
		if c.destroyed.Load() {
			_ = c.Session.Close()
			return
		}
		if c.reopen {
			c.post(&SessionEvent{session: c.Session, evType: sessionReopen})
		} else {
			c.post(&SessionEvent{session: c.Session, evType: sessionOpen})
			c.reopen = true
		}
		c.serve()
	}
}

func (c *Client) serve() {
	for {
		msg, err := c.Recv()
		if err != nil {
			errNetLog(err, fmt.Sprintf("client[%d] closed, server addr: %s, err:%v",
				c.ID(), c.Addr, err))
			_ = c.Session.Close()
			break
		}
		c.postMsgEvent(msg)
	}
	c.post(&SessionEvent{session: c.Session, evType: sessionClose})
}

func (c *Client) connect() bool {
	conn, err := c.dial()
	if err != nil {
		xlog.Errorf("connect failed: %s %s %v", c.Protocol, c.Addr, err)
		return false
	}
	if err := c.ReBind(conn, c.Factory.NewStream(conn)); err != nil {
		xlog.Errorf("rebind failed: %v", err)
		_ = conn.Close()
		return false
	}
	return true
}

type tcpDialer struct {
	c *Client
}

func (d *tcpDialer) dial() (net.Conn, error) {
	return net.DialTimeout(d.c.Network, d.c.Addr, d.c.Timeout)
}

// PostDial 异步连接, 连接结果通过 Handler 通知.
func PostDial(cfg *ClientConfig) (*Client, error) {
	if err := checkClientConfig(cfg); err != nil {
		return nil, err
	}
	sessionCfg := &sessionConfig{
		async:  cfg.PostEvent,
		bufLen: cfg.QueueBufLen,
		proto:  cfg.Factory.Protocol(),
	}
	cli := &Client{
		ClientConfig: cfg,
		Session:      newClientSession(sessionCfg),
		evChan:       make(chan *SessionEvent, defaultEvChanSize),
	}

	switch cfg.Protocol {
	case ProtocolTCP:
		cli.clientDialer = &tcpDialer{cli}
	case ProtocolKCP:
		cli.clientDialer = &kcpDialer{cli}
	case ProtocolWS:
		cli.clientDialer = &wsDialer{cli}
	default:
		return nil, errors.Errorf("unknown protocol %v in PostDial", cfg.Protocol)
	}
	cli.SetUserData(cfg.UserData)
	go cli.keepConnect()
	return cli, nil
}
