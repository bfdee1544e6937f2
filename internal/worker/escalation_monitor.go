package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// EscalationMonitor periodically sweeps active tickets for SLA breaches. A
// tick never overlaps a still-running prior tick: an in-process guard covers
// this instance and a redis lock covers replicas.
type EscalationMonitor struct {
	escalation *service.EscalationService
	redis      *persistence.Redis
	logger     *zap.Logger
	interval   time.Duration
	lockKey    string

	mu      sync.Mutex
	ticking bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEscalationMonitor constructs the monitor.
func NewEscalationMonitor(escalation *service.EscalationService, redis *persistence.Redis, logger *zap.Logger, interval time.Duration, lockKey string) *EscalationMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &EscalationMonitor{
		escalation: escalation,
		redis:      redis,
		logger:     logger,
		interval:   interval,
		lockKey:    lockKey,
	}
}

// Start launches the periodic sweep until Stop is called or ctx ends.
func (m *EscalationMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		m.logger.Warn("escalation monitor already running")
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("starting escalation monitor", zap.Duration("interval", m.interval))
	go m.run(ctx)
}

// Stop halts the monitor and waits for a running tick to finish.
func (m *EscalationMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("escalation monitor stopped")
}

func (m *EscalationMonitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one sweep if no other tick holds the guard or the cross-replica
// lock. Errors are logged, never fatal.
func (m *EscalationMonitor) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.ticking {
		m.mu.Unlock()
		m.logger.Debug("skipping escalation tick; previous tick still running")
		return
	}
	m.ticking = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.ticking = false
		m.mu.Unlock()
	}()

	if !m.acquireLock(ctx) {
		m.logger.Debug("skipping escalation tick; lock held elsewhere")
		return
	}
	defer m.releaseLock(ctx)

	if err := m.escalation.CheckAllSLAs(ctx, time.Now()); err != nil {
		m.logger.Error("escalation sweep failed", zap.Error(err))
	}
}

// acquireLock takes the cross-replica lock. When redis is unavailable the
// sweep proceeds on the in-process guard alone.
func (m *EscalationMonitor) acquireLock(ctx context.Context) bool {
	if m.redis == nil || m.redis.Client == nil {
		return true
	}
	ok, err := m.redis.Client.SetNX(ctx, m.lockKey, "1", m.interval).Result()
	if err != nil {
		m.logger.Warn("escalation lock unavailable; proceeding without it", zap.Error(err))
		return true
	}
	return ok
}

func (m *EscalationMonitor) releaseLock(ctx context.Context) {
	if m.redis == nil || m.redis.Client == nil {
		return
	}
	if err := m.redis.Client.Del(ctx, m.lockKey).Err(); err != nil {
		m.logger.Warn("failed to release escalation lock", zap.Error(err))
	}
}
