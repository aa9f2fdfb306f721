package service

import (
	"context"
	"log"
	"time"
)

// Sweeper is the slice of the booking service the reaper drives.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryReaper periodically cancels PENDING bookings whose
// confirmation deadline has passed, returning their tickets to the
// pool. It is the active half of the expiry contract; the passive half
// is Confirm refusing expired bookings.
type ExpiryReaper struct {
	sweeper  Sweeper
	interval time.Duration
	batch    int
}

// NewExpiryReaper wires a reaper that sweeps every interval, at most
// batch bookings per pass.
func NewExpiryReaper(sweeper Sweeper, interval time.Duration, batch int) *ExpiryReaper {
	return &ExpiryReaper{sweeper: sweeper, interval: interval, batch: batch}
}

// Run sweeps on a ticker until the context is cancelled. Sweep errors
// are logged and the next tick tries again.
func (r *ExpiryReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	log.Printf("expiry-reaper: started, interval=%s batch=%d", r.interval, r.batch)
	for {
		select {
		case <-ctx.Done():
			log.Printf("expiry-reaper: stopped")
			return
		case <-ticker.C:
			n, err := r.sweeper.SweepExpired(ctx, r.batch)
			if err != nil {
				log.Printf("expiry-reaper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry-reaper: reaped %d expired bookings", n)
			}
		}
	}
}
