package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/atriumhq/atrium/pkg/logger"
)

// Config holds fixed-window limiter configuration.
type Config struct {
	// MaxAttempts allowed per key inside one window.
	MaxAttempts int
	// Window is the fixed window duration.
	Window time.Duration
	// SweepInterval bounds memory by periodically dropping elapsed windows.
	SweepInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		SweepInterval: time.Hour,
	}
}

// window is one key's counter. Counters live only in this process and are
// lost on restart.
type window struct {
	count   int
	resetAt time.Time
}

// Service is a fixed-window counter keyed by arbitrary strings (IP, user
// id). It gates invitation creation, acceptance and token validation.
type Service struct {
	mu      sync.Mutex
	windows map[string]*window
	config  *Config
	done    chan struct{}
	now     func() time.Time
}

// NewService creates the limiter and starts its sweep goroutine.
func NewService(config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Service{
		windows: make(map[string]*window),
		config:  config,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.sweepLoop()
	return s
}

// Stop terminates the sweep goroutine.
func (s *Service) Stop() {
	close(s.done)
}

// IsLimited records one attempt for key and reports whether the key has
// exceeded its allowance in the current window. The first observation of a
// key, or the first after its window elapsed, opens a fresh window with
// count one.
func (s *Service) IsLimited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		s.windows[key] = &window{count: 1, resetAt: now.Add(s.config.Window)}
		return s.config.MaxAttempts < 1
	}
	w.count++
	return w.count > s.config.MaxAttempts
}

// Remaining reports how many attempts key has left in its current window
// without recording an attempt.
func (s *Service) Remaining(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok || !s.now().Before(w.resetAt) {
		return s.config.MaxAttempts
	}
	remaining := s.config.MaxAttempts - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAt reports when key's current window elapses. For an unknown or
// elapsed key it returns the zero time.
func (s *Service) ResetAt(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok || !s.now().Before(w.resetAt) {
		return time.Time{}
	}
	return w.resetAt
}

// Clear drops key's window early. Called after a successful sensitive
// operation so the legitimate next attempt is not penalized.
func (s *Service) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}

func (s *Service) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes elapsed windows to bound memory.
func (s *Service) sweep() {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	remaining := len(s.windows)
	s.mu.Unlock()
	if removed > 0 {
		logger.FromContext(context.Background()).Debug("Swept elapsed rate limit windows", "removed", removed, "remaining", remaining)
	}
}
