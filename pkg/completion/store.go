package completion

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// Package completion keeps the per-user set of completed survey ids.
// Storage faults never reach callers: reads degrade to the empty set and
// writes are dropped after logging.

const (
	keyPrefix      = "completed_surveys:"
	defaultTimeout = 2 * time.Second
)

// Backend persists one ordered list of survey ids per key.
type Backend interface {
	Load(ctx context.Context, key string) ([]string, error)
	Save(ctx context.Context, key string, ids []string) error
	Delete(ctx context.Context, key string) error
}

// Logger defines the minimal logging interface used by the store.
type Logger interface {
	Printf(format string, args ...any)
}

// Store is the CompletionStore. Writes go to the backend before the call returns.
type Store struct {
	backend Backend
	logger  Logger
	timeout time.Duration
	mu      sync.Mutex
}

// NewStore wraps backend. A nil logger falls back to log.Default().
func NewStore(backend Backend, logger Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		timeout: defaultTimeout,
	}
}

// Key returns the storage key namespaced by user identity.
func Key(userID survey.UserID) string {
	return keyPrefix + strings.TrimSpace(string(userID))
}

// IsCompleted reports whether userID has completed surveyID.
func (s *Store) IsCompleted(ctx context.Context, userID survey.UserID, surveyID string) bool {
	surveyID = strings.TrimSpace(surveyID)
	if surveyID == "" {
		return false
	}
	for _, id := range s.ListCompleted(ctx, userID) {
		if id == surveyID {
			return true
		}
	}
	return false
}

// ListCompleted returns a snapshot of the user's completed survey ids in insertion order.
func (s *Store) ListCompleted(ctx context.Context, userID survey.UserID) []string {
	if userID.IsZero() || s.backend == nil {
		return []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.loadLocked(ctx, userID)
	if err != nil {
		s.logger.Printf("[ListCompleted] storage unavailable for user %s, treating as empty: %v", userID, err)
		return []string{}
	}
	return ids
}

// MarkCompleted adds surveyIDs to the user's set. Already present ids are ignored.
func (s *Store) MarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string) {
	s.update(ctx, "MarkCompleted", userID, func(current []string) []string {
		return normalize(append(current, surveyIDs...))
	})
}

// UnmarkCompleted removes surveyIDs from the user's set. Missing ids are ignored.
func (s *Store) UnmarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string) {
	drop := make(map[string]bool, len(surveyIDs))
	for _, id := range surveyIDs {
		drop[strings.TrimSpace(id)] = true
	}
	s.update(ctx, "UnmarkCompleted", userID, func(current []string) []string {
		kept := make([]string, 0, len(current))
		for _, id := range current {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		return kept
	})
}

// ClearAll forgets every completion of userID.
func (s *Store) ClearAll(ctx context.Context, userID survey.UserID) {
	if userID.IsZero() || s.backend == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Delete(opCtx, Key(userID)); err != nil {
		s.logger.Printf("[ClearAll] storage unavailable for user %s: %v", userID, err)
		return
	}
	s.logger.Printf("[ClearAll] completions cleared for user %s", userID)
}

func (s *Store) update(ctx context.Context, op string, userID survey.UserID, mutate func([]string) []string) {
	if userID.IsZero() {
		s.logger.Printf("[%s] skipped: no user identity", op)
		return
	}
	if s.backend == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx, userID)
	if err != nil {
		s.logger.Printf("[%s] storage unavailable for user %s, change dropped: %v", op, userID, err)
		return
	}
	next := mutate(current)
	if equal(current, next) {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Save(opCtx, Key(userID), next); err != nil {
		s.logger.Printf("[%s] storage unavailable for user %s, change dropped: %v", op, userID, err)
	}
}

func (s *Store) loadLocked(ctx context.Context, userID survey.UserID) ([]string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ids, err := s.backend.Load(opCtx, Key(userID))
	if err != nil {
		return nil, err
	}
	return normalize(ids), nil
}

// normalize trims ids, drops empties and duplicates, and keeps first-seen order.
func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
