// Package reaper runs the background sweep that hard-deletes refresh-token
// rows which are already semantically dead: expired, or revoked and past a
// grace period. Request-path code never deletes rows, so the reaper is the
// only writer racing nothing — a row eligible for deletion can no longer
// belong to a live session.
package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// TokenDeleter is the one storage operation the reaper needs.
// *repository.TokenRepo satisfies it.
type TokenDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

// Reaper owns a cron scheduler with a single recurring job. It uses its
// own contexts and shares no mutable state with request handlers.
type Reaper struct {
	tokens   TokenDeleter
	interval time.Duration
	grace    time.Duration
	cron     *cron.Cron
}

// New builds a reaper that runs every interval and keeps revoked rows
// visible for grace before physical deletion.
func New(tokens TokenDeleter, interval, grace time.Duration) *Reaper {
	return &Reaper{tokens: tokens, interval: interval, grace: grace, cron: cron.New()}
}

// Start schedules the sweep and launches the scheduler. The first sweep
// happens one interval after startup.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.RunOnce); err != nil {
		return err
	}
	r.cron.Start()
	log.Printf("reaper: started, sweeping every %s (revoked grace %s)", r.interval, r.grace)
	return nil
}

// Stop cancels the schedule and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Printf("reaper: stopped")
}

// RunOnce performs a single sweep. Errors are logged and swallowed: the
// rows stay eligible and the next scheduled run retries them, so a failed
// sweep must never take the host process down.
func (r *Reaper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	n, err := r.tokens.DeleteExpired(ctx, now, r.grace)
	if err != nil {
		log.Printf("reaper: sweep failed: %v", err)
		return
	}
	log.Printf("reaper: deleted %d expired refresh tokens at [%s]", n, now.Format("2006-01-02 15:04:05"))
}
