package logging

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Throttled forwards at most burst messages per interval to its entry and counts the rest.
// Each instance owns its limiter, so unrelated callers never share a budget.
type Throttled struct {
	entry   *logrus.Entry
	limiter *rate.Limiter
	dropped atomic.Int64
}

func NewThrottled(entry *logrus.Entry, every time.Duration, burst int) *Throttled {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Throttled{entry: entry, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) allow(level logrus.Level) bool {
	if !t.entry.Logger.IsLevelEnabled(level) {
		return false
	}
	if t.limiter.Allow() {
		return true
	}
	t.dropped.Add(1)
	return false
}

func (t *Throttled) emit(level logrus.Level, format string, args ...any) {
	if !t.allow(level) {
		return
	}
	e := t.entry
	if n := t.dropped.Swap(0); n > 0 {
		e = e.WithField("suppressed", n)
	}
	e.Logf(level, format, args...)
}

func (t *Throttled) Debugf(format string, args ...any) { t.emit(logrus.DebugLevel, format, args...) }
func (t *Throttled) Infof(format string, args ...any)  { t.emit(logrus.InfoLevel, format, args...) }
func (t *Throttled) Warnf(format string, args ...any)  { t.emit(logrus.WarnLevel, format, args...) }

// WithField returns a Throttled sharing this limiter but logging through a derived entry.
func (t *Throttled) WithField(key string, value any) *Throttled {
	return &Throttled{entry: t.entry.WithField(key, value), limiter: t.limiter}
}

// Dropped reports messages suppressed since the last one that got through.
func (t *Throttled) Dropped() int64 {
	return t.dropped.Load()
}
