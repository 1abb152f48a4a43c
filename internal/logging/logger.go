package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes JSON logs to a rotated file under logDir. Level is read
// from LOG_LEVEL (debug|info|warn|error), defaulting to info.
func NewLogger(logDir string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "netprobe.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, levelFromEnv())
	return zap.New(core), nil
}

func levelFromEnv() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.Set(os.Getenv("LOG_LEVEL")); err != nil {
		return zap.InfoLevel
	}
	return lvl
}
