package xlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
type Options struct {
	Dir           string `toml:"dir" yaml:"dir"`
	Name          string `toml:"name" yaml:"name"`
	Level         string `toml:"level" yaml:"level"` // debug, info, warn, error
	Console       bool   `toml:"console" yaml:"console"`
	MaxSize       int    `toml:"max_size" yaml:"max_size"` // MB
	MaxAge        int    `toml:"max_age" yaml:"max_age"`   // days
	MaxBackups    int    `toml:"max_backups" yaml:"max_backups"`
	FlushInterval int    `toml:"flush_interval" yaml:"flush_interval"` // seconds
}

func DefaultOptions() Options {
	return Options{
		Dir:           "./logs",
		Name:          filepath.Base(os.Args[0]),
		Level:         "info",
		Console:       true,
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    200,
		FlushInterval: 1,
	}
}

var (
	atom      = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	sugar     *zap.SugaredLogger
	stdWriter *Logger
)

func init() {
	zapLogger = newZapLogger(nil, true, atom)
	sugar = zapLogger.Sugar()
}

// Configure replaces the console-only startup logger. Call once during startup.
func Configure(opts Options) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
		return errors.Wrapf(err, "xlog: level %q", opts.Level)
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(os.Args[0])
	}
	if err := os.MkdirAll(opts.Dir, 0744); err != nil {
		return errors.Wrapf(err, "make logs dir %s", opts.Dir)
	}
	fname := filepath.Join(opts.Dir, opts.Name+".log")

	Close()
	atom.SetLevel(lvl)
	stdWriter = NewLogger(fname, opts.MaxSize, opts.MaxAge, opts.MaxBackups, 1024, opts.FlushInterval)
	zapLogger = newZapLogger(zapcore.AddSync(stdWriter), opts.Console, atom)
	sugar = zapLogger.Sugar()
	return nil
}

func SetLevel(lvl zapcore.Level) {
	atom.SetLevel(lvl)
}

func output(lvl zapcore.Level, skip int, format string, v ...interface{}) {
	if !atom.Enabled(lvl) {
		return
	}
	var str string
	if format == "" {
		str = fmt.Sprint(v...)
	} else {
		str = fmt.Sprintf(format, v...)
	}
	l := zapLogger
	if skip > 0 {
		l = l.WithOptions(zap.AddCallerSkip(skip))
	}
	if ce := l.Check(lvl, str); ce != nil {
		ce.Write()
	}
}

func Debug(v ...interface{}) {
	output(zapcore.DebugLevel, 0, "", v...)
}

func Debugf(format string, v ...interface{}) {
	output(zapcore.DebugLevel, 0, format, v...)
}

func Info(v ...interface{}) {
	output(zapcore.InfoLevel, 0, "", v...)
}

func InfoF(format string, v ...interface{}) {
	output(zapcore.InfoLevel, 0, format, v...)
}

func Warn(v ...interface{}) {
	output(zapcore.WarnLevel, 0, "", v...)
}

func Warnf(format string, v ...interface{}) {
	output(zapcore.WarnLevel, 0, format, v...)
}

func Error(v ...interface{}) {
	output(zapcore.ErrorLevel, 0, "", v...)
}

func Errorf(format string, v ...interface{}) {
	output(zapcore.ErrorLevel, 0, format, v...)
}

func ErrorfSkip(skip int, format string, v ...interface{}) {
	output(zapcore.ErrorLevel, skip, format, v...)
}

// Sugar exposes key/value logging for callers that want fields.
func Sugar() *zap.SugaredLogger {
	return sugar
}

func Sync() error {
	_ = ZapSync()
	if stdWriter != nil {
		return stdWriter.Sync()
	}
	return nil
}

func Close() {
	if stdWriter != nil {
		_ = Sync()
		_ = stdWriter.Close()
		stdWriter = nil
		zapLogger = newZapLogger(nil, true, atom)
		sugar = zapLogger.Sugar()
	}
}
