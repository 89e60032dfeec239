// Package conversation persists per-conversation resolution state so a
// clarification answered in a later request can be reconciled against the
// question that raised it. Two backends exist: an in-process store with a
// background janitor, and a Redis store for multi-instance deployments.
package conversation

import (
	"context"
	"sync"
	"time"

	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

const (
	// DefaultIdleTimeout removes conversations untouched for this long.
	DefaultIdleTimeout = 24 * time.Hour
	// DefaultCleanupInterval is the janitor sweep period.
	DefaultCleanupInterval = 10 * time.Minute
)

// Stats summarizes the store for the operations endpoint.
type Stats struct {
	ActiveConversations   int `json:"active_conversations"`
	PendingClarifications int `json:"pending_clarifications"`
}

// Store holds conversation state keyed by conversation id. Get returns
// (nil, nil) for unknown ids; Update applies fn atomically, creating the
// state first when absent.
type Store interface {
	Get(ctx context.Context, id string) (*models.ConversationState, error)
	Update(ctx context.Context, id string, fn func(*models.ConversationState) error) (*models.ConversationState, error)
	Delete(ctx context.Context, id string) error
	Cleanup(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// MemoryStore keeps conversation state in process memory.
type MemoryStore struct {
	idleTimeout time.Duration
	log         logger.Logger

	mu     sync.RWMutex
	states map[string]*models.ConversationState

	stop chan struct{}
	once sync.Once
}

func NewMemoryStore(idleTimeout, cleanupInterval time.Duration, log logger.Logger) *MemoryStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &MemoryStore{
		idleTimeout: idleTimeout,
		log:         log,
		states:      make(map[string]*models.ConversationState),
		stop:        make(chan struct{}),
	}
	go s.janitor(cleanupInterval)
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed, _ := s.Cleanup(context.Background())
			if removed > 0 {
				s.log.Info("Cleaned up idle conversations", map[string]interface{}{"removed": removed})
			}
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[id]
	if !ok || state.IsIdle(s.idleTimeout) {
		return nil, nil
	}
	return cloneState(state), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*models.ConversationState) error) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// fn works on a clone; the stored state only changes once fn succeeds.
	work := &models.ConversationState{ConversationID: id}
	if state, ok := s.states[id]; ok && !state.IsIdle(s.idleTimeout) {
		work = cloneState(state)
	}

	if err := fn(work); err != nil {
		return nil, err
	}
	work.Touch()
	s.states[id] = work
	metrics.ConversationsActive.Set(float64(len(s.states)))

	return cloneState(work), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	metrics.ConversationsActive.Set(float64(len(s.states)))
	return nil
}

// Cleanup removes every idle conversation and reports how many were dropped.
func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, state := range s.states {
		if state.IsIdle(s.idleTimeout) {
			delete(s.states, id)
			removed++
		}
	}
	metrics.ConversationsActive.Set(float64(len(s.states)))
	return removed, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{}
	for _, state := range s.states {
		if state.IsIdle(s.idleTimeout) {
			continue
		}
		stats.ActiveConversations++
		stats.PendingClarifications += len(state.Pending)
	}
	return stats, nil
}

// Close stops the janitor. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func cloneState(in *models.ConversationState) *models.ConversationState {
	out := &models.ConversationState{
		ConversationID: in.ConversationID,
		LastActivity:   in.LastActivity,
	}
	if len(in.Pending) > 0 {
		out.Pending = make([]models.ClarificationPending, len(in.Pending))
		copy(out.Pending, in.Pending)
	}
	if len(in.Resolved) > 0 {
		out.Resolved = make([]models.ResolvedFilter, len(in.Resolved))
		copy(out.Resolved, in.Resolved)
	}
	return out
}
