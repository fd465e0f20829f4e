package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"invencea-api/internal/repository"
)

// SessionSweeper periodically purges expired session rows. Login already
// purges the caller's own expired row, so the sweep only keeps the table small.
type SessionSweeper struct {
	sessions  repository.SessionRepository
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	log       *slog.Logger
}

// NewSessionSweeper creates a sweeper. Interval defaults to 10 minutes.
func NewSessionSweeper(sessions repository.SessionRepository, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      slog.With("component", "session-sweeper"),
	}
}

// Start begins sweeping in the background. Calling it twice is a no-op.
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	s.log.Info("started", "interval", s.interval)
	go s.run()
}

func (s *SessionSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.log.Info("stopped")
			return
		}
	}
}

func (s *SessionSweeper) sweep() {
	n, err := s.RunNow(context.Background())
	if err != nil {
		s.log.Error("sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("purged expired sessions", "count", n)
	}
}

// Stop halts the background loop.
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow purges expired sessions immediately.
func (s *SessionSweeper) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	return s.sessions.DeleteExpired(ctx, time.Now())
}
