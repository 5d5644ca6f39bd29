package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger according to env.
func New(env string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	switch env {
	case "development":
		config = zap.NewDevelopmentConfig()
	case "test":
		return zap.NewNop(), nil
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

// WithRequestID attaches request context to logger.
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("request_id", requestID))
}

// Token describes a credential without revealing it.
func Token(key, token string) zap.Field {
	return zap.Dict(key, zap.Bool("present", token != ""), zap.Int("length", len(token)))
}

// Sync flushes logger.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}
