package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "rtadmin/internal/log"
)

// ReconcilerConfig holds configuration for the periodic ledger resync.
type ReconcilerConfig struct {
	// Interval between full resyncs (default: 15m).
	Interval time.Duration
	// OnStart runs a resync immediately when the loop starts.
	OnStart bool
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: 15 * time.Minute,
		OnStart:  true,
	}
}

// Reconcilable is implemented by LedgerWorker.
type Reconcilable interface {
	Reconcile(ctx context.Context) error
}

// Reconciler runs Reconcile on a ticker until stopped.
type Reconciler struct {
	target Reconcilable
	config ReconcilerConfig
	logger *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	runs    int
	lastErr error
}

func NewReconciler(target Reconcilable, config ReconcilerConfig, logger *applog.Logger) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Reconciler{
		target: target,
		config: config,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// Start begins the loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Ledger reconciler started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Ledger reconciler stopped")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Ledger reconciler stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Runs reports how many resyncs have completed and the last error.
func (r *Reconciler) Runs() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.lastErr
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	if r.config.OnStart {
		r.runOnce(ctx)
	}

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	start := time.Now()
	err := r.target.Reconcile(ctx)

	r.mu.Lock()
	r.runs++
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		r.logger.ErrorContext(ctx, "Ledger reconcile failed", applog.FieldError, err)
		return
	}
	r.logger.DebugContext(ctx, "Ledger reconcile completed", applog.FieldDuration, time.Since(start).Milliseconds())
}
