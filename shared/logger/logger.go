package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives Warn and Error lines when mirroring is enabled.
type Sink interface {
	SendOps(text string)
}

type Logger struct {
	ZapLogger   *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
	sink        Sink
}

type Config struct {
	Level       string
	Environment string
}

func parseLevel(level string) (zapcore.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel, true
	case "info":
		return zap.InfoLevel, true
	case "warn", "warning":
		return zap.WarnLevel, true
	case "error":
		return zap.ErrorLevel, true
	case "fatal":
		return zap.FatalLevel, true
	}
	return zap.InfoLevel, false
}

func NewLogger(cfg Config) (*Logger, error) {
	logLevel, ok := parseLevel(cfg.Level)
	if !ok {
		fmt.Printf("WARN: Invalid log level '%s' specified, defaulting to INFO\n", cfg.Level)
	}
	atomicLevel := zap.NewAtomicLevelAt(logLevel)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.LevelKey = "severity"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Environment == "development" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomicLevel)

	// AddCallerSkip(1) so the caller is the code using Logger, not Logger itself.
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	l := &Logger{
		ZapLogger:   zapLogger.Sugar(),
		atomicLevel: atomicLevel,
	}
	l.ZapLogger.Infof("Logger initialized. Level: %s, Environment: %s", logLevel.String(), cfg.Environment)
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		ZapLogger:   zap.NewNop().Sugar(),
		atomicLevel: zap.NewAtomicLevelAt(zap.InfoLevel),
	}
}

func (l *Logger) Zap() *zap.SugaredLogger {
	return l.ZapLogger
}

// With returns a child logger carrying the given key-value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		ZapLogger:   l.ZapLogger.With(keysAndValues...),
		atomicLevel: l.atomicLevel,
		sink:        l.sink,
	}
}

// MirrorTo forwards Warn and Error lines to s. Pass nil to stop mirroring.
func (l *Logger) MirrorTo(s Sink) {
	l.sink = s
}

// formatKeyValues renders zap fields and loose pairs for a plain-text sink.
func formatKeyValues(keysAndValues ...interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i++ {
		switch kv := keysAndValues[i].(type) {
		case zap.Field:
			enc := zapcore.NewMapObjectEncoder()
			kv.AddTo(enc)
			for k, v := range enc.Fields {
				sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
			}
		default:
			if i+1 >= len(keysAndValues) {
				sb.WriteString(fmt.Sprintf(" %v=INVALID_ARGS", kv))
				continue
			}
			sb.WriteString(fmt.Sprintf(" %v=%v", kv, keysAndValues[i+1]))
			i++
		}
	}
	return sb.String()
}

func (l *Logger) mirror(prefix, msg string, keysAndValues ...interface{}) {
	if l.sink == nil {
		return
	}
	l.sink.SendOps(prefix + msg + formatKeyValues(keysAndValues...))
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Warnw(msg, keysAndValues...)
	l.mirror("🟡 WARN: ", msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Errorw(msg, keysAndValues...)
	l.mirror("🔴 ERROR: ", msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.mirror("💀 FATAL: ", msg, keysAndValues...)
	l.ZapLogger.Fatalw(msg, keysAndValues...)
}

func (l *Logger) SetLevel(level string) {
	logLevel, ok := parseLevel(level)
	if !ok || logLevel == zap.FatalLevel {
		l.ZapLogger.Warnf("Invalid log level '%s' provided to SetLevel, level unchanged.", level)
		return
	}
	l.atomicLevel.SetLevel(logLevel)
	l.ZapLogger.Infof("Logger level changed to: %s", logLevel.String())
}

func (l *Logger) Level() string {
	return l.atomicLevel.Level().String()
}
