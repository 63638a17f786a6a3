package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a periodic job. The returned count is logged when non-zero.
type Task func(ctx context.Context) (int, error)

// TickerConfig configures a periodic job.
type TickerConfig struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Ticker runs a task on a fixed interval until stopped.
type Ticker struct {
	name     string
	task     Task
	interval time.Duration
	logger   *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewTicker builds a ticker for the provided task.
func NewTicker(name string, task Task, cfg TickerConfig) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ticker{
		name:     name,
		task:     task,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Start launches the loop. Safe to call once.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	var runCtx context.Context
	runCtx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(runCtx)
	t.started = true
	t.logger.Sugar().Infow("ticker started", "job", t.name, "interval", t.interval.String())
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.cancel()
	t.started = false
	t.mu.Unlock()
	t.wg.Wait()
	t.logger.Sugar().Infow("ticker stopped", "job", t.name)
}

func (t *Ticker) loop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.run(ctx)
		}
	}
}

func (t *Ticker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("job panicked", zap.String("job", t.name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	n, err := t.task(ctx)
	if err != nil {
		t.logger.Warn("job failed", zap.String("job", t.name), zap.Error(err))
		return
	}
	if n > 0 {
		t.logger.Info("job completed",
			zap.String("job", t.name),
			zap.Int("removed", n),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
