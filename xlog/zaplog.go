package xlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var zapLogger *zap.Logger

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "@timestamp",
		LevelKey:       "loglevel",
		CallerKey:      "caller",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,  // 小写编码器
		EncodeTime:     zapcore.RFC3339TimeEncoder,     // RFC3339 UTC 时间格式
		EncodeDuration: zapcore.SecondsDurationEncoder, //
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// newZapLogger 文件输出 json, 控制台输出 console 格式.
func newZapLogger(file zapcore.WriteSyncer, console bool, level zap.AtomicLevel) *zap.Logger {
	var cores []zapcore.Core
	if file != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(newEncoderConfig()), file, level))
	}
	if console {
		cfg := newEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
}

// GetZapLogger returns the structured logger behind the printf helpers.
func GetZapLogger() *zap.Logger {
	return zapLogger
}

func ZapSync() error {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
	return nil
}
