package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatroom/internal/clock"
	"chatroom/internal/presence"

	"github.com/robfig/cron/v3"
)

const cycleTimeout = 30 * time.Second

// MinInterval is the shortest interval the scheduler can honour.
const MinInterval = time.Second

type ReapEngine interface {
	Reap(ctx context.Context, now time.Time) (presence.ReapReport, error)
}

// Reaper runs presence reap cycles on a fixed interval. A cycle that is
// still running when the next tick fires causes that tick to be skipped.
type Reaper struct {
	engine   ReapEngine
	clock    clock.Clock
	interval time.Duration
	cron     *cron.Cron
}

func NewReaper(engine ReapEngine, clk clock.Clock, interval time.Duration) *Reaper {
	logger := cron.PrintfLogger(log.Default())
	return &Reaper{
		engine:   engine,
		clock:    clk,
		interval: interval,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

func (r *Reaper) Start() error {
	// @every schedules have one-second resolution.
	if r.interval < MinInterval {
		return fmt.Errorf("reap interval %s is below the minimum of %s", r.interval, MinInterval)
	}

	_, err := r.cron.AddFunc("@every "+r.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		log.Printf("[REAPER] Error scheduling cron: %v", err)
		return err
	}

	r.cron.Start()
	log.Printf("[REAPER] Started, cycle every %s", r.interval)
	return nil
}

// Stop prevents further cycles and waits for a running one to finish or
// for ctx to end.
func (r *Reaper) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		log.Println("[REAPER] Stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single reap cycle at the clock's current time.
func (r *Reaper) RunOnce(ctx context.Context) presence.ReapReport {
	report, err := r.engine.Reap(ctx, r.clock.Now())
	if err != nil {
		log.Printf("[REAPER] Cycle aborted: %v", err)
		return report
	}
	if len(report.Evicted) > 0 || len(report.Failed) > 0 {
		log.Printf("[REAPER] Cycle done: %d evicted, %d failed", len(report.Evicted), len(report.Failed))
	}
	return report
}
