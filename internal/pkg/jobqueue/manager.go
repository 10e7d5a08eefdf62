package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/gofiber/fiber/v2/log"
)

const (
	sweepLockKey   = "jobqueue:redeem-email-sweep"
	defaultBatch   = 50
	sweepRunBudget = 2 * time.Minute
)

// RedeemEmailRetrier resends redemption emails whose first delivery failed.
type RedeemEmailRetrier interface {
	RetryPendingEmails(ctx context.Context, maxAttempts, limit int) (int, error)
}

// Locker keeps concurrent instances from sweeping at the same time.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
}

// Manager runs the redemption email sweeper in the background.
type Manager struct {
	retrier RedeemEmailRetrier
	locker  Locker
	opts    Options

	sweepTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

// NewManager builds a sweeper. A nil locker disables cross-instance locking.
func NewManager(retrier RedeemEmailRetrier, locker Locker, opts Options) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatch
	}
	return &Manager{
		retrier: retrier,
		locker:  locker,
		opts:    opts,
	}
}

// Start launches the sweeper. It is a no-op when already running or when the
// interval is not positive.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.opts.Interval <= 0 {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[JobQueue Manager] Starting redeem email sweeper (interval: %s, max attempts: %d)", m.opts.Interval, m.opts.MaxAttempts)

	m.sweepTicker = time.NewTicker(m.opts.Interval)
	m.wg.Add(1)
	go m.sweepWorker(m.sweepTicker, m.stopCh)
}

// Stop halts the sweeper and waits for an in-flight run to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping redeem email sweeper...")
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) sweepWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Redeem email sweeper stopping")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepRunBudget)
			if _, err := m.SweepOnce(ctx); err != nil {
				log.Errorf("[JobQueue Manager] Redeem email sweep error: %v", err)
			}
			cancel()
		}
	}
}

// SweepOnce runs a single retry pass and returns how many emails went out.
// A sweep held by another instance is skipped without error. When the lock
// itself is unavailable the pass still runs.
func (m *Manager) SweepOnce(ctx context.Context) (int, error) {
	if m.locker != nil {
		release, err := m.locker.Acquire(ctx, sweepLockKey, sweepRunBudget)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			log.Debug("[JobQueue Manager] Redeem email sweep already running elsewhere")
			return 0, nil
		case err != nil:
			log.Warnf("[JobQueue Manager] Sweep lock unavailable, sweeping without it: %v", err)
		default:
			defer release()
		}
	}

	sent, err := m.retrier.RetryPendingEmails(ctx, m.opts.MaxAttempts, m.opts.BatchSize)
	if sent > 0 {
		log.Infof("[JobQueue Manager] Resent %d redeem emails", sent)
	}
	return sent, err
}
