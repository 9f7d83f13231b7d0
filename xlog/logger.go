package xlog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	blockCount uint64
	logCount   uint64
	logBytes   uint64
)

var errLogChanFull = errors.New("log chan Full")

// Logger 异步写文件. Write 只做拷贝入队, 由后台协程写入 lumberjack.
type Logger struct {
	inputQ chan []byte
	closeQ chan struct{}
	flushQ chan chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	l      *lumberjack.Logger
}

func (l *Logger) Write(p []byte) (n int, err error) {
	slice := make([]byte, len(p))
	copy(slice, p)
	select {
	case l.inputQ <- slice:
		return len(slice), nil
	default:
		atomic.AddUint64(&blockCount, 1)
		return 0, errLogChanFull
	}
}

// Sync blocks until everything queued so far reached the file.
func (l *Logger) Sync() error {
	done := make(chan struct{})
	select {
	case l.flushQ <- done:
		<-done
	case <-l.closeQ:
	}
	return nil
}

func (l *Logger) Close() error {
	l.once.Do(func() {
		close(l.closeQ)
		l.wg.Wait()
	})
	return nil
}

func NewLogger(fname string, msize, mage, mbackups, qsize, flushInterval int) *Logger {
	realLogger := &lumberjack.Logger{
		Filename:   fname,
		MaxSize:    msize,
		MaxAge:     mage,
		MaxBackups: mbackups,
	}
	if flushInterval <= 0 {
		flushInterval = 1
	}

	l := &Logger{
		inputQ: make(chan []byte, qsize),
		closeQ: make(chan struct{}),
		flushQ: make(chan chan struct{}),
		l:      realLogger,
	}

	write := func(p []byte) {
		atomic.AddUint64(&logCount, 1)
		atomic.AddUint64(&logBytes, uint64(len(p)))
		_, _ = realLogger.Write(p)
	}
	drain := func() {
		for {
			select {
			case p := <-l.inputQ:
				write(p)
			default:
				return
			}
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(time.Second * time.Duration(flushInterval))
		defer ticker.Stop()
		for {
			select {
			case p := <-l.inputQ:
				write(p)
			case <-ticker.C:
				drain()
			case done := <-l.flushQ:
				drain()
				close(done)
			case <-l.closeQ:
				drain()
				_ = realLogger.Close()
				return
			}
		}
	}()

	return l
}

func BlockCount() uint64 {
	return atomic.LoadUint64(&blockCount)
}

func LogCount() uint64 {
	return atomic.LoadUint64(&logCount)
}

func LogBytes() uint64 {
	return atomic.LoadUint64(&logBytes)
}
