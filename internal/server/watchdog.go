package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watchdog flags the chair as offline when no reading has arrived within the
// configured timeout, and logs recovery when readings resume.
type Watchdog struct {
	mu       sync.Mutex
	lastSeen time.Time
	offline  bool

	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewWatchdog(timeout, interval time.Duration, logger *zap.Logger) *Watchdog {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watchdog{
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

func (watchdog *Watchdog) MarkSeen(at time.Time) {
	watchdog.mu.Lock()
	if at.After(watchdog.lastSeen) {
		watchdog.lastSeen = at
	}
	if watchdog.offline {
		watchdog.offline = false
		watchdog.logger.Info("device back online", zap.Time("lastSeen", watchdog.lastSeen))
	}
	watchdog.mu.Unlock()
}

// Status reports the last reading time and whether the device is currently
// considered offline. The zero lastSeen means nothing has arrived yet.
func (watchdog *Watchdog) Status() (time.Time, bool) {
	watchdog.mu.Lock()
	defer watchdog.mu.Unlock()
	return watchdog.lastSeen, watchdog.offline
}

func (watchdog *Watchdog) check(now time.Time) {
	watchdog.mu.Lock()
	defer watchdog.mu.Unlock()

	if watchdog.lastSeen.IsZero() || watchdog.offline {
		return
	}
	if now.Sub(watchdog.lastSeen) >= watchdog.timeout {
		watchdog.offline = true
		watchdog.logger.Warn(
			"device offline",
			zap.Time("lastSeen", watchdog.lastSeen),
			zap.Duration("timeout", watchdog.timeout),
		)
	}
}

func (watchdog *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(watchdog.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			watchdog.check(now)
		}
	}
}
