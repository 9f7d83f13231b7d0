package xnet

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"xwire/xlog"
)

// Server类接口
type Server interface {
	Addr() net.Addr
	Close()
	ProcessEvent() bool // 返回当前是否全部处理
	SetUserData(any)
	GetUserData() any
	Sessions() *SessionMgr
}

// config
type ServerConfig struct {
	Network       string              // 用的什么网络
	Addr          string              // addr
	PostEvent     bool                // 是否push事件方式
	Handler       SessionEventHandler // 客户端连接事件回调
	Factory       StreamFactory       // 工厂类
	MaxSessionNum uint32              // 最大连接数
	QueueBufLen   int                 // 发送队列buf长度
	WSPath        string              // websocket upgrade path
}

// 各协议 server 共用的 accept/serve 逻辑
type server struct {
	*SessionMgr
	*ServerConfig
	listener  net.Listener       // 监听器实例
	userData  any                // user data
	evChan    chan *SessionEvent // event channel
	closeOnce sync.Once
	closeSig  chan struct{}
	t         string                  // 连接类型
	tune      func(net.Conn) net.Conn // 连接建立后的协议相关设置
	// for optimize
	creator sessionEventSyncCreator
}

// 检查配置, 赋予默认值
func checkServerConfig(cfg *ServerConfig) error {
	if cfg.Handler == nil {
		return errors.New("xnet: ServerConfig.Handler is nil")
	}
	if cfg.Factory == nil {
		cfg.Factory = NewFrameStreamFactory(nil, 0, 0)
	}
	if cfg.PostEvent {
		if cfg.QueueBufLen == 0 {
			cfg.QueueBufLen = 1024
		}
	}
	if cfg.MaxSessionNum <= 0 {
		cfg.MaxSessionNum = 1024
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.WSPath == "" {
		cfg.WSPath = "/ws"
	}
	return nil
}

func newServer(cfg *ServerConfig, l net.Listener, t string) *server {
	return &server{
		SessionMgr:   newSessionMgr(cfg.MaxSessionNum),
		ServerConfig: cfg,
		listener:     l,
		closeSig:     make(chan struct{}),
		evChan:       make(chan *SessionEvent, defaultEvChanSize),
		t:            t,
	}
}

// new tcp server
func NewTcpServer(cfg *ServerConfig) (Server, error) {
	if err := checkServerConfig(cfg); err != nil {
		return nil, err
	}
	l, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		xlog.Errorf("listen error on %s, because: %v", cfg.Addr, err)
		return nil, errors.Wrapf(err, "listen %s", cfg.Addr)
	}
	xlog.InfoF("listen at tcp://%s", l.Addr())

	s := newServer(cfg, l, "TCP")
	s.tune = func(conn net.Conn) net.Conn {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0)
			_ = tcpConn.SetNoDelay(true)
		}
		return conn
	}
	go s.serve()
	return s, nil
}

func (s *server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *server) Sessions() *SessionMgr {
	return s.SessionMgr
}

func (s *server) SetUserData(udata any) {
	s.userData = udata
}

func (s *server) GetUserData() any {
	return s.userData
}

func (s *server) postOpenEvent(session *Session) {
	if s.PostEvent {
		s.evChan <- &SessionEvent{session: session, evType: sessionOpen}
	} else {
		s.Handler.OnOpen(session, false)
	}
}

func (s *server) postCloseEvent(session *Session) {
	if s.PostEvent {
		s.evChan <- &SessionEvent{session: session, evType: sessionClose}
	} else {
		s.Handler.OnClose(session)
	}
}

func (s *server) postMsgEvent(session *Session, msg *Message) {
	// 这是多线程环境
	if s.PostEvent {
		ev := s.creator.newSessionEvent()
		ev.session = session
		ev.evType = sessionData
		ev.msg = msg
		s.evChan <- ev
	} else {
		s.Handler.OnMessage(session, msg)
	}
}

func (s *server) onSessionClose(c Sessioner) {
	s.DeleteSession(c)
}

// 开启服务
func (s *server) serve() {
	sessionCfg := &sessionConfig{
		async:  s.PostEvent,
		bufLen: s.QueueBufLen,
		proto:  s.Factory.Protocol(),
	}
	tempDelay := time.Duration(0)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeSig:
				return
			default:
			}
			xlog.Errorf("accept error on: %s, error: %s", s.listener.Addr().String(), err)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return
		}
		tempDelay = 0
		go s.handshake(conn, sessionCfg)
	}
}

// 握手
func (s *server) handshake(conn net.Conn, sessionCfg *sessionConfig) {
	if s.tune != nil {
		conn = s.tune(conn)
	}
	stream := s.Factory.NewStream(conn)

	session, err := s.CreateSession(conn, stream, sessionCfg)
	if err != nil {
		xlog.Errorf("[%s] %s err=%v", s.t, conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	session.AddCloseCallback(s.onSessionClose)
	s.postOpenEvent(session)
	s.serveOne(session)
}

// 服务一个session
func (s *server) serveOne(c *Session) {
	for {
		msg, err := c.Recv()
		if err != nil {
			errNetLog(err, fmt.Sprintf("[%s] stop serving session %d: %v", s.t, c.ID(), err))
			_ = c.Close()
			break
		}
		s.postMsgEvent(c, msg)
	}
	s.postCloseEvent(c)
}

// (主线程)处理连接事件
func (s *server) ProcessEvent() bool {
	return processEvents(s.evChan, s.Handler)
}

func processEvents(evChan chan *SessionEvent, h SessionEventHandler) bool {
	batch := 1024
	for i := 0; i < batch; i++ {
		select {
		case ev := <-evChan:
			switch ev.evType {
			case sessionOpen:
				h.OnOpen(ev.session, false)
			case sessionReopen:
				h.OnOpen(ev.session, true)
			case sessionClose:
				h.OnClose(ev.session)
			case sessionData:
				msg := ev.msg
				ev.msg = nil
				h.OnMessage(ev.session, msg)
			default:
				panic("xwire/xnet.ProcessEvent")
			}
		default:
			return true
		}
	}
	return false
}

func (s *server) Close() {
	s.closeOnce.Do(s.close)
}

func (s *server) close() {
	close(s.closeSig)
	_ = s.listener.Close()
	s.Range(func(sess *Session) bool {
		_ = sess.Close()
		return true
	})
}
