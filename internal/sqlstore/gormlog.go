package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// zapGORMLogger adapts a *zap.Logger to gormlogger.Interface, the same
// adaptation the teacher performs in server/internal/db/logger.go, so every
// actor's SQL activity is routed through the host's structured logger
// instead of GORM's own stdout writer.
type zapGORMLogger struct {
	log                       *zap.Logger
	level                     gormlogger.LogLevel
	slowQueryThreshold        time.Duration
	ignoreRecordNotFoundError bool
}

func newZapGORMLogger(log *zap.Logger, level gormlogger.LogLevel) gormlogger.Interface {
	if level == 0 {
		level = gormlogger.Warn
	}
	return &zapGORMLogger{
		log:                       log.WithOptions(zap.AddCallerSkip(3)),
		level:                     level,
		slowQueryThreshold:        200 * time.Millisecond,
		ignoreRecordNotFoundError: true,
	}
}

func (l *zapGORMLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zapGORMLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *zapGORMLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *zapGORMLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *zapGORMLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("caller", utils.FileWithLineNum()),
	}

	switch {
	case err != nil && !(l.ignoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		l.log.Error("gorm query error", append(fields, zap.Error(err))...)
	case l.slowQueryThreshold > 0 && elapsed > l.slowQueryThreshold:
		l.log.Warn("gorm slow query", fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("gorm query", fields...)
	}
}
