package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects where and how ledgerctl writes its log
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DefaultConfig keeps diagnostics on stderr so command output on stdout
// can be piped.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: "stderr"}
}

// New builds the process logger. The returned release func closes a log
// file opened for cfg.Output and must be called once the logger is done.
func New(cfg Config) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
	}

	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	sink, release, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", output, err)
	}

	core := zapcore.NewCore(encoder(cfg.Format), sink, level)
	log := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel), zap.ErrorOutput(sink))
	return log, release, nil
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(ec)
}
