package service

import (
	"context"
	"sync"
	"time"

	"driveo/pkg/logger"
)

// Reaper runs BookingService.Reap on a fixed interval.
type Reaper struct {
	service  BookingService
	interval time.Duration
	log      *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReaper(service BookingService, interval time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{service: service, interval: interval, log: log}
}

// Start runs one pass immediately and then one per interval until Stop is
// called or ctx ends.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.run(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.run(ctx)
			}
		}
	}()
	r.log.Info("Booking reaper started", "interval", r.interval)
}

func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reaper) run(ctx context.Context) {
	if _, err := r.service.Reap(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("Booking reaper pass failed", "error", err)
	}
}
