package channel

import (
	"sync"
)

// SwitchChan 多写单读无界队列. 写端追加到 write, 读端消费 read, read 读空时交换两者.
type SwitchChan[T any] struct {
	read, write []T
	readPos     int
	mu          sync.Mutex
	nonEmpty    *sync.Cond
	closed      bool
}

func NewSwitchChan[T any](bufLen int) *SwitchChan[T] {
	s := &SwitchChan[T]{}
	s.Init(bufLen)
	return s
}

func (s *SwitchChan[T]) Init(bufLen int) {
	s.read = make([]T, 0, bufLen)
	s.write = make([]T, 0, bufLen)
	s.nonEmpty = sync.NewCond(&s.mu)
}

// Write returns false once the queue is closed.
func (s *SwitchChan[T]) Write(ele T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.write = append(s.write, ele)
	s.mu.Unlock()
	s.nonEmpty.Signal()
	return true
}

func (s *SwitchChan[T]) pop() T {
	var zero T
	e := s.read[s.readPos]
	s.read[s.readPos] = zero
	s.readPos++
	return e
}

func (s *SwitchChan[T]) TryRead() (T, bool) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return zero, false
	}
	if len(s.read) > s.readPos {
		return s.pop(), true
	}
	if len(s.write) < 1 {
		return zero, false
	}
	s.readPos = 0
	s.read, s.write = s.write, s.read[:0]
	return s.pop(), true
}

// Read blocks until an element is available or the queue is closed.
func (s *SwitchChan[T]) Read() (T, bool) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return zero, false
		}
		if len(s.read) > s.readPos {
			return s.pop(), true
		}
		for len(s.write) < 1 && !s.closed {
			s.nonEmpty.Wait()
		}
		if s.closed {
			return zero, false
		}
		s.readPos = 0
		s.read, s.write = s.write, s.read[:0]
	}
}

func (s *SwitchChan[T]) Len() int {
	s.mu.Lock()
	l := (len(s.read) - s.readPos) + len(s.write)
	s.mu.Unlock()
	return l
}

func (s *SwitchChan[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.read = nil
	s.write = nil
	s.mu.Unlock()
	s.nonEmpty.Broadcast()
}
