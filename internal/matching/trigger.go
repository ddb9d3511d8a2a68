package matching

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PeriodicTrigger fires Engine.MatchActively on a fixed cadence with a
// per-bot startup offset (C4), staggering concurrent bots in the same
// process so they don't all hit the directory at once.
type PeriodicTrigger struct {
	Engine *Engine
	Logger *logrus.Logger

	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// Start schedules the first run after TriggerBaseDelay + loadBalancingDelay *
// botsInProcess, then every TriggerPeriod thereafter, until Stop is called.
func (p *PeriodicTrigger) Start(ctx context.Context, loadBalancingDelay time.Duration, botsInProcess int) {
	initialDelay := TriggerBaseDelay + loadBalancingDelay*time.Duration(botsInProcess)
	p.done = make(chan struct{})
	go p.run(ctx, initialDelay)
}

func (p *PeriodicTrigger) run(ctx context.Context, initialDelay time.Duration) {
	p.timer = time.NewTimer(initialDelay)
	defer p.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.timer.C:
			p.fire(ctx)
			p.timer.Reset(TriggerPeriod)
		}
	}
}

func (p *PeriodicTrigger) fire(ctx context.Context) {
	if p.Engine == nil {
		return
	}
	if _, err := p.Engine.MatchActively(ctx); err != nil {
		p.logger().WithError(err).Debug("active matching pass ended with error")
	}
}

func (p *PeriodicTrigger) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.StandardLogger()
}

// Stop cancels the timer and releases all scoped resources deterministically.
func (p *PeriodicTrigger) Stop() {
	p.stopOnce.Do(func() {
		if p.done != nil {
			close(p.done)
		}
	})
}
