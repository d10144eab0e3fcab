package flowlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-logr/logr"
)

// NewZapProduction builds the operator-facing JSON logger: ISO8601
// timestamps, one line per event, suitable for being shipped alongside the
// flow output onto the same log aggregation pipeline.
func NewZapProduction() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// zapSink adapts a *zap.Logger into a logr.LogSink so the rest of the
// pipeline keeps calling logr's Info/Error/WithValues without caring which
// backend is installed.
type zapSink struct {
	l    *zap.SugaredLogger
	name string
}

var _ logr.LogSink = &zapSink{}

// NewZapSink wraps z for use with flowlog.SetLogger.
func NewZapSink(z *zap.Logger) logr.LogSink {
	return &zapSink{l: z.Sugar()}
}

func (s *zapSink) Init(logr.RuntimeInfo) {}

func (s *zapSink) Enabled(level int) bool {
	// zap's debug level corresponds to logr's V(1) and up.
	return true
}

func (s *zapSink) Info(level int, msg string, kv ...interface{}) {
	if level > 0 {
		s.l.Debugw(msg, kv...)
		return
	}
	s.l.Infow(msg, kv...)
}

func (s *zapSink) Error(err error, msg string, kv ...interface{}) {
	s.l.Errorw(msg, append(kv, "error", err)...)
}

func (s *zapSink) WithName(name string) logr.LogSink {
	n := name
	if s.name != "" {
		n = s.name + "." + name
	}
	return &zapSink{l: s.l.Named(name), name: n}
}

func (s *zapSink) WithValues(kv ...interface{}) logr.LogSink {
	return &zapSink{l: s.l.With(kv...), name: s.name}
}
