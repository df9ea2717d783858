package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/trials/internal/domain/model"
)

const driverMemory = "memory"

// MemoryStore is an in-process Store. It returns copies, never internal pointers.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]model.TestAttempt
	athletes map[string]model.AthleteProfile
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string]model.TestAttempt),
		athletes: make(map[string]model.AthleteProfile),
	}
}

func (s *MemoryStore) CreateAttempt(_ context.Context, a model.TestAttempt) error {
	defer observe(driverMemory, "create_attempt", time.Now())
	if a.ID == "" {
		return fmt.Errorf("create attempt: %w: empty id", ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; ok {
		return fmt.Errorf("create attempt %s: %w", a.ID, ErrAlreadyExists)
	}
	s.attempts[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) GetAttempt(_ context.Context, id string) (model.TestAttempt, error) {
	defer observe(driverMemory, "get_attempt", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return model.TestAttempt{}, fmt.Errorf("get attempt %s: %w", id, ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) PatchAttempt(_ context.Context, id string, p model.AttemptPatch) (model.TestAttempt, error) {
	defer observe(driverMemory, "patch_attempt", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s: %w", id, ErrNotFound)
	}
	if !p.Holds(&a) {
		return model.TestAttempt{}, fmt.Errorf("patch attempt %s in status %s: %w", id, a.Status, ErrConflict)
	}
	p.Apply(&a)
	s.attempts[id] = a
	return a.Clone(), nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, q Query) ([]model.TestAttempt, error) {
	defer observe(driverMemory, "list_attempts", time.Now())
	s.mu.RLock()
	out := make([]model.TestAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		if q.matches(&a) {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()

	sortAttempts(out, &q)
	return applyLimit(out, &q), nil
}

func (s *MemoryStore) DeleteAttempt(_ context.Context, id string) error {
	defer observe(driverMemory, "delete_attempt", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[id]; !ok {
		return fmt.Errorf("delete attempt %s: %w", id, ErrNotFound)
	}
	delete(s.attempts, id)
	return nil
}

func (s *MemoryStore) PutAthlete(_ context.Context, a model.AthleteProfile) error {
	defer observe(driverMemory, "put_athlete", time.Now())
	if a.ID == "" {
		return fmt.Errorf("put athlete: %w: empty id", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.athletes[a.ID] = a
	return nil
}

func (s *MemoryStore) ListAthletes(_ context.Context) ([]model.AthleteProfile, error) {
	defer observe(driverMemory, "list_athletes", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AthleteProfile, 0, len(s.athletes))
	for _, a := range s.athletes {
		out = append(out, a)
	}
	sortAthletes(out)
	return out, nil
}

func (s *MemoryStore) FindAthletes(_ context.Context, userIDs []string) ([]model.AthleteProfile, error) {
	defer observe(driverMemory, "find_athletes", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AthleteProfile
	for _, a := range s.athletes {
		if slices.Contains(userIDs, a.ID) || (a.ClerkID != "" && slices.Contains(userIDs, a.ClerkID)) {
			out = append(out, a)
		}
	}
	sortAthletes(out)
	return out, nil
}

func (s *MemoryStore) CountAthletes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.athletes), nil
}

// sortAthletes orders athletes by registration time, then id.
func sortAthletes(rows []model.AthleteProfile) {
	slices.SortFunc(rows, func(a, b model.AthleteProfile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
