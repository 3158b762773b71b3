package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with a key/value call style.
type Logger struct {
	*zap.Logger
}

// Config selects level, encoding and destination.
type Config struct {
	Level  string
	Format string
	Output string
}

// New builds a logger. Format "json" uses the production encoder, anything
// else the console encoder.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	var enc zapcore.EncoderConfig
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
		enc = zap.NewProductionEncoderConfig()
		zcfg.Encoding = "json"
	} else {
		zcfg = zap.NewDevelopmentConfig()
		enc = zap.NewDevelopmentEncoderConfig()
		zcfg.Encoding = "console"
	}

	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	zcfg.EncoderConfig = enc
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.Output != "" && cfg.Output != "stdout" {
		zcfg.OutputPaths = []string{cfg.Output}
		zcfg.ErrorOutputPaths = []string{cfg.Output}
	} else {
		zcfg.OutputPaths = []string{"stdout"}
	}

	zl, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return &Logger{zl}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap.NewNop()}
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{l.Logger.With(fields(kv)...)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.Logger.Debug(msg, fields(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.Logger.Info(msg, fields(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.Logger.Warn(msg, fields(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.Logger.Error(msg, fields(kv)...) }

func fields(kv []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			out = append(out, zap.NamedError(key, err))
			continue
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
