package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultThrottleInterval bounds how often a repeated failure is logged.
const DefaultThrottleInterval = 5 * time.Second

// Throttled emits at most one entry per key and interval. Best-effort I/O
// paths fail in bursts (a full disk fails every write), so they log through
// this instead of the raw logger.
type Throttled struct {
	logger   *zap.Logger
	interval time.Duration

	mu   sync.Mutex
	keys map[string]*rate.Sometimes
}

// NewThrottled wraps logger. A non-positive interval uses DefaultThrottleInterval.
func NewThrottled(logger *zap.Logger, interval time.Duration) *Throttled {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttled{
		logger:   logger,
		interval: interval,
		keys:     make(map[string]*rate.Sometimes),
	}
}

// Warn logs msg at warn level unless key was logged within the interval.
func (t *Throttled) Warn(key, msg string, fields ...zap.Field) {
	t.limiter(key).Do(func() {
		t.logger.Warn(msg, fields...)
	})
}

// Error logs msg at error level unless key was logged within the interval.
func (t *Throttled) Error(key, msg string, fields ...zap.Field) {
	t.limiter(key).Do(func() {
		t.logger.Error(msg, fields...)
	})
}

func (t *Throttled) limiter(key string) *rate.Sometimes {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.keys[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: t.interval}
		t.keys[key] = s
	}
	return s
}
