// Package logging builds the process-wide zap.Logger: JSON lines to a
// lumberjack-rotated file, plus the same JSON lines on stdout, following cppla-moto/utils/log.go's tee-core construction.
package logging

import (
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duelcore/netcode/internal/config"
)

// Category is one of the log event classes the original per-category
// bool toggles (connection/world_state/player_input/message_handling/
// ack/error/debug) covered. Kept as a field value rather than separate
// enable flags, so filtering is a query against structured output
// instead of a recompile or config reload.
type Category string

const (
	CategoryConnection      Category = "connection"
	CategoryWorldState      Category = "world_state"
	CategoryPlayerInput     Category = "player_input"
	CategoryMessageHandling Category = "message_handling"
	CategoryAck             Category = "ack"
	CategoryError           Category = "error"
	CategoryDebug           Category = "debug"
)

// Field tags a log line with its Category for downstream filtering.
func Field(c Category) zap.Field {
	return zap.String("category", string(c))
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New builds a logger from cfg. An empty cfg.Path disables the rotated
// file core and logs to stdout only, which is convenient for short-lived
// test binaries.
func New(cfg config.Log) *zap.Logger {
	level, ok := levelMap[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level })

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	if cfg.Path != "" {
		hook := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(hook), enabler))
	}
	cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), enabler))

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}
