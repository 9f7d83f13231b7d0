package xnet

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"xwire/xcontainer/channel"
)

var (
	allocSessionID      atomic.Uint32
	errSessionNotClosed = errors.New("session not closed")
	errSessionClosed    = errors.New("session closed")
	errAsyncNotEnable   = errors.New("async not enable")
)

// 客户端连接事件
const (
	sessionOpen = iota
	sessionReopen
	sessionClose
	sessionData

	defaultEvChanSize = 1024
)

type sessionConfig struct {
	async  bool
	bufLen int
	proto  *Protocol
	// 客户端 session 会被重连复用, Close 时不销毁发送队列
	persistent bool
}

// Sessioner Session interface
type Sessioner interface {
	ID() uint32
	RemoteAddr() string
	LocalAddr() string
	Recv() (*Message, error)
	Close() error
	SyncSendRaw([]byte) error
	SyncSend(any) error
	SyncSendBytes([]byte) error
	AsyncSend(any) error
	GetUserData() any
	SetUserData(any)
}

// 客户端连接事件回调处理
type SessionEventHandler interface {
	OnOpen(Sessioner, bool)
	OnClose(Sessioner)
	OnMessage(Sessioner, *Message)
}

type SessionEvent struct {
	session Sessioner
	evType  int
	msg     *Message
}

type sessionEventSyncCreator struct {
	slice []SessionEvent
	idx   int
	mutex sync.Mutex
}

func (cr *sessionEventSyncCreator) newSessionEvent() *SessionEvent {
	cr.mutex.Lock()
	if cr.idx >= len(cr.slice) {
		cr.slice = make([]SessionEvent, 4096)
		cr.idx = 0
	}
	ele := &cr.slice[cr.idx]
	cr.idx++
	cr.mutex.Unlock()
	return ele
}

type Session struct {
	*sessionConfig
	id             uint32
	stream         atomic.Pointer[Streamer]
	sendChan       *channel.SwitchChan[[]byte]
	closeCallbacks []func(Sessioner)
	udMu           sync.RWMutex
	userData       any
	addrMu         sync.RWMutex
	local, remote  net.Addr
	sendSig        chan struct{}
	done           chan struct{}
	destroyOnce    sync.Once
}

func newSession(conn net.Conn, stream Streamer, cfg *sessionConfig) *Session {
	if cfg == nil {
		panic("sessionConfig is nil")
	}
	if cfg.proto == nil {
		cfg.proto = NewProtocol(nil)
	}
	s := &Session{
		id:            allocSessionID.Add(1),
		sessionConfig: cfg,
		sendSig:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	if stream != nil {
		s.stream.Store(&stream)
	}
	if conn != nil {
		s.local = conn.LocalAddr()
		s.remote = conn.RemoteAddr()
	}
	if cfg.async {
		s.sendChan = channel.NewSwitchChan[[]byte](cfg.bufLen)
		go s.sender()
	}
	return s
}

func newClientSession(cfg *sessionConfig) *Session {
	cfg.persistent = true
	return newSession(nil, nil, cfg)
}

func (s *Session) ID() uint32 {
	return s.id
}

func (s *Session) RemoteAddr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	if s.remote == nil {
		return ""
	}
	return s.remote.String()
}

func (s *Session) LocalAddr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	if s.local == nil {
		return ""
	}
	return s.local.String()
}

// ReBind 给已关闭的 session 绑定新连接. 新 stream 自带新的 parser.
func (s *Session) ReBind(conn net.Conn, stream Streamer) error {
	if stream == nil {
		panic("argument is nil")
	}
	if !s.stream.CompareAndSwap(nil, &stream) {
		return errSessionNotClosed
	}

	s.addrMu.Lock()
	s.local = conn.LocalAddr()
	s.remote = conn.RemoteAddr()
	s.addrMu.Unlock()
	if s.sendChan != nil {
		select {
		case s.sendSig <- struct{}{}:
		default:
		}
	}
	return nil
}

// add 关闭连接回调. 只在 session 开始服务前调用.
func (s *Session) AddCloseCallback(cb func(Sessioner)) {
	s.closeCallbacks = append(s.closeCallbacks, cb)
}

func (s *Session) invokeCloseCallback() {
	for _, cb := range s.closeCallbacks {
		cb(s)
	}
}

// recv 消息
func (s *Session) Recv() (*Message, error) {
	stream := s.getStream()
	if stream == nil {
		return nil, errSessionClosed
	}
	return stream.Recv()
}

// close
func (s *Session) Close() (err error) {
	p := s.stream.Swap(nil)
	if p == nil || *p == nil {
		return
	}
	err = (*p).Close()

	s.invokeCloseCallback()

	if !s.persistent {
		s.destroy()
	}
	return
}

func (s *Session) destroy() {
	s.destroyOnce.Do(func() {
		close(s.done)
		if s.sendChan != nil {
			s.sendChan.Close()
		}
	})
}

// SyncSendRaw goroutine safe, write net.Conn without encode
func (s *Session) SyncSendRaw(msg []byte) error {
	stream := s.getStream()
	if stream == nil {
		return errSessionClosed
	}
	if err := stream.SendRaw(msg); err != nil {
		_ = s.Close()
		return err
	}
	return nil
}

// SyncSend goroutine safe
func (s *Session) SyncSend(msg any) error {
	stream := s.getStream()
	if stream == nil {
		return errSessionClosed
	}
	return stream.Send(msg)
}

// SyncSendBytes goroutine safe, body 为已序列化的数据
func (s *Session) SyncSendBytes(body []byte) error {
	stream := s.getStream()
	if stream == nil {
		return errSessionClosed
	}
	return stream.SendBytes(body)
}

// AsyncSend goroutine safe. 序列化在调用方协程完成, 错误同步返回; 写 socket 由 sender 协程完成.
func (s *Session) AsyncSend(msg any) error {
	if !s.async {
		return errAsyncNotEnable
	}
	buf, err := s.proto.Marshal(msg)
	if err != nil {
		return err
	}
	if !s.sendChan.Write(buf) {
		return errSessionClosed
	}
	return nil
}

func (s *Session) sender() {
	for {
		buf, ok := s.sendChan.Read()
		if !ok {
			return
		}
		for {
			stream := s.getStream()
			if stream == nil {
				select {
				case <-s.sendSig:
				case <-s.done:
					return
				}
				continue
			}
			if err := stream.SendRaw(buf); err != nil {
				errNetLog(err, fmt.Sprintf("sender Send msg err=%v", err))
				_ = s.Close()
				continue
			}
			break
		}
	}
}

func (s *Session) SendQueueLen() int {
	if s.sendChan == nil {
		return 0
	}
	return s.sendChan.Len()
}

func (s *Session) getStream() Streamer {
	p := s.stream.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (s *Session) GetUserData() any {
	s.udMu.RLock()
	defer s.udMu.RUnlock()
	return s.userData
}

func (s *Session) SetUserData(ud any) {
	s.udMu.Lock()
	s.userData = ud
	s.udMu.Unlock()
}
