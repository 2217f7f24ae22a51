package auth

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// CleanupWorker periodically purges stale refresh token records. It is
// explicitly constructed and explicitly stopped; Start and Stop are both
// idempotent. A pass that fails is logged and the next pass still runs:
// cleanup is housekeeping, not correctness-critical.
type CleanupWorker struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	service   *AuthService
	interval  time.Duration
}

// NewCleanupWorker creates a stopped worker
func NewCleanupWorker(service *AuthService, interval time.Duration) *CleanupWorker {
	return &CleanupWorker{
		service:  service,
		interval: interval,
	}
}

// Start schedules cleanup passes at the configured interval. Calling Start on
// a running worker is a no-op.
func (w *CleanupWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	// Passes never run concurrently with themselves.
	s.SingletonModeAll()
	if _, err := s.Every(w.interval).Do(w.runPass); err != nil {
		return err
	}
	s.StartAsync()
	w.scheduler = s
	log.Printf("token cleanup worker started (interval %v)", w.interval)
	return nil
}

// Stop halts scheduling. No new pass starts after Stop returns; a pass already
// in flight is allowed to finish. Calling Stop on a stopped worker is a no-op.
func (w *CleanupWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler == nil {
		return
	}
	w.scheduler.Stop()
	w.scheduler = nil
	log.Printf("token cleanup worker stopped")
}

// Running reports whether the worker is currently scheduled
func (w *CleanupWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scheduler != nil
}

func (w *CleanupWorker) runPass() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("token cleanup pass panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := w.service.CleanupExpiredTokens(ctx)
	if err != nil {
		log.Printf("token cleanup pass failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Removed %v stale refresh tokens", removed)
	}
}
