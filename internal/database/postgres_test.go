package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newObservedLogger() (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), 100*time.Millisecond), logs
}

func trace(l logger.Interface, elapsed time.Duration, err error) {
	l.Trace(context.Background(), time.Now().Add(-elapsed), func() (string, int64) {
		return "SELECT 1", 1
	}, err)
}

func TestGormLogger_Trace(t *testing.T) {
	l, logs := newObservedLogger()

	trace(l, time.Millisecond, nil)
	trace(l, time.Millisecond, gorm.ErrRecordNotFound)
	trace(l, time.Millisecond, gorm.ErrDuplicatedKey)
	assert.Zero(t, logs.Len(), "fast queries and expected misses stay quiet")

	trace(l, time.Millisecond, errors.New("connection reset"))
	trace(l, time.Second, nil)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "query failed", entries[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "slow query", entries[1].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}

func TestGormLogger_LogModeDoesNotMutate(t *testing.T) {
	l, logs := newObservedLogger()

	silent := l.LogMode(logger.Silent)
	trace(silent, time.Second, errors.New("boom"))
	assert.Zero(t, logs.Len())

	trace(l, time.Second, nil)
	assert.Equal(t, 1, logs.Len())
}
