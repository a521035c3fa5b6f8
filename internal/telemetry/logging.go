package telemetry

import (
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the gateway log level and the fields stamped on every
// entry.
type LogConfig struct {
	Level string
	// Debug forces debug level so adapter payload dumps are written.
	Debug       bool
	ServiceName string
	Version     string
	// OutputPaths defaults to stdout.
	OutputPaths []string
}

// ZapLevel resolves the configured level. Unknown names fall back to info.
func (c LogConfig) ZapLevel() zapcore.Level {
	if c.Debug {
		return zapcore.DebugLevel
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger creates the JSON gateway logger. Entries carry the service name,
// version and carrier. In debug mode info entries are also recorded on the
// active span.
func NewLogger(cfg LogConfig) (*otelzap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	config.Encoding = "json"
	config.OutputPaths = []string{"stdout"}
	if len(cfg.OutputPaths) > 0 {
		config.OutputPaths = cfg.OutputPaths
	}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{zap.String("carrier", "cttexpress")}
	if cfg.ServiceName != "" {
		fields = append(fields, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}

	zapLogger, err := config.Build(zap.AddCallerSkip(1), zap.Fields(fields...))
	if err != nil {
		return nil, err
	}

	spanLevel := zapcore.WarnLevel
	if cfg.Debug {
		spanLevel = zapcore.InfoLevel
	}
	return otelzap.New(zapLogger, otelzap.WithMinLevel(spanLevel)), nil
}
