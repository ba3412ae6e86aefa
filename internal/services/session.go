package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gsc-dashboard/internal/models"
)

const janitorInterval = time.Minute

// Store maps session IDs to per-session Analytics. Sessions idle longer
// than the TTL are evicted by a janitor goroutine; their Datasets go with
// them, which is the only way uploaded data ever leaves memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	seed     []*models.Dataset
	ttl      time.Duration
	logger   *slog.Logger
	done     chan struct{}
	once     sync.Once
}

type sessionEntry struct {
	analytics *Analytics
	lastSeen  time.Time
}

func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// SetSeed registers demo datasets that every new session starts with.
// Datasets are immutable after parsing, so sessions share the backing
// records safely; replacing a label only swaps the session's own pointer.
func (s *Store) SetSeed(datasets []*models.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = datasets
}

// GetOrCreate returns the session for id, creating a fresh one (with a new
// ID) when id is empty or expired.
func (s *Store) GetOrCreate(id string) (string, *Analytics) {
	if id != "" {
		s.mu.Lock()
		if entry, ok := s.sessions[id]; ok {
			entry.lastSeen = time.Now()
			s.mu.Unlock()
			return id, entry.analytics
		}
		s.mu.Unlock()
	}
	return s.create()
}

func (s *Store) create() (string, *Analytics) {
	id := uuid.NewString()
	analytics := NewAnalytics()

	s.mu.Lock()
	for _, ds := range s.seed {
		analytics.datasets[ds.Label] = ds
		analytics.order = append(analytics.order, ds.Label)
	}
	s.sessions[id] = &sessionEntry{analytics: analytics, lastSeen: time.Now()}
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", id, "active_sessions", count)
	return id, analytics
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

func (s *Store) evictIdle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, id)
			s.logger.Info("session expired", "session_id", id)
		}
	}
}

// Close stops the janitor. Sessions themselves need no teardown.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}
