package xnet

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrSessionNumLimit
	ErrSessionNumLimit = errors.New("session number max limit")
)

// 连接管理类
type SessionMgr struct {
	sessionMap      sync.Map
	sessionNum      atomic.Uint32
	sessionTotalNum atomic.Uint64
	maxSessionNum   uint32
}

func newSessionMgr(max uint32) *SessionMgr {
	return &SessionMgr{maxSessionNum: max}
}

// create
func (m *SessionMgr) CreateSession(conn net.Conn, stream Streamer, cfg *sessionConfig) (*Session, error) {
	for {
		n := m.sessionNum.Load()
		if n >= m.maxSessionNum {
			return nil, ErrSessionNumLimit
		}
		if m.sessionNum.CompareAndSwap(n, n+1) {
			break
		}
	}
	m.sessionTotalNum.Add(1)
	s := newSession(conn, stream, cfg)
	m.sessionMap.Store(s.ID(), s)
	return s, nil
}

func (m *SessionMgr) GetSession(id uint32) *Session {
	if s, ok := m.sessionMap.Load(id); ok {
		return s.(*Session)
	}
	return nil
}

func (m *SessionMgr) DeleteSession(c Sessioner) {
	if _, ok := m.sessionMap.LoadAndDelete(c.ID()); ok {
		m.sessionNum.Add(^uint32(0))
	}
}

func (m *SessionMgr) SessionNum() uint32 {
	return m.sessionNum.Load()
}

func (m *SessionMgr) SessionTotalNum() uint64 {
	return m.sessionTotalNum.Load()
}

func (m *SessionMgr) Range(f func(*Session) bool) {
	m.sessionMap.Range(func(_, value any) bool {
		return f(value.(*Session))
	})
}
