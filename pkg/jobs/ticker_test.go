package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickerRunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	core, logs := observer.New(zapcore.InfoLevel)
	tk := NewTicker("sweep", func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 2, nil
	}, TickerConfig{Interval: 5 * time.Millisecond, Logger: zap.New(core)})

	tk.Start(context.Background())
	tk.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	tk.Stop()

	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
	assert.NotZero(t, logs.FilterMessage("job completed").Len())
	tk.Stop()
}

func TestTickerSurvivesFailures(t *testing.T) {
	var runs atomic.Int32
	tk := NewTicker("flaky", func(ctx context.Context) (int, error) {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return 0, errors.New("nope")
	}, TickerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	tk.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	tk.Stop()
}
