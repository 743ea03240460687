package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger writes GORM statement traces to zap, tagged with the workspace
// and operation carried by the context. Missing rows are routine lookups and
// never logged; lock waits log at warn.
type SQLLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewSQLLogger creates an SQLLogger. level is one of silent, error, warn or
// info; a zero slow threshold disables slow statement warnings.
func NewSQLLogger(base *zap.Logger, level string, slow time.Duration) *SQLLogger {
	return &SQLLogger{
		base:  base.Named("sql"),
		level: ParseSQLLevel(level),
		slow:  slow,
	}
}

// ParseSQLLevel maps a config string to a GORM log level, warn by default
func ParseSQLLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface
func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, at gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < at {
		return
	}
	l.base.With(TagsFrom(ctx).Fields()...).Sugar().Logf(lvl, msg, data...)
}

// Trace implements gormlogger.Interface
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed > l.slow
	var lvl zapcore.Level
	var msg string
	switch {
	case err != nil && isLockWait(err):
		lvl, msg = zapcore.WarnLevel, "sql statement waited on the write lock"
	case err != nil:
		lvl, msg = zapcore.ErrorLevel, "sql statement failed"
	case slow:
		lvl, msg = zapcore.WarnLevel, "slow sql statement"
	default:
		lvl, msg = zapcore.DebugLevel, "sql"
	}
	if !l.enabled(lvl) {
		return
	}

	sql, rows := fc()
	fields := append(TagsFrom(ctx).Fields(),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.base.Log(lvl, msg, fields...)
}

// enabled reports whether the GORM level lets a record at lvl through
func (l *SQLLogger) enabled(lvl zapcore.Level) bool {
	switch {
	case lvl >= zapcore.ErrorLevel:
		return l.level >= gormlogger.Error
	case lvl >= zapcore.WarnLevel:
		return l.level >= gormlogger.Warn
	}
	return l.level >= gormlogger.Info
}

func isLockWait(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
