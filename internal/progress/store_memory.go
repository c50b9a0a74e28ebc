package progress

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

type pairKey struct {
	userID    string
	contentID string
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	watches  map[pairKey]WatchProgress
	attempts map[pairKey][]Attempt
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watches:  make(map[pairKey]WatchProgress),
		attempts: make(map[pairKey][]Attempt),
		now:      time.Now,
	}
}

// WithinTx holds the store lock for the whole of fn and restores the previous
// state if fn returns an error.
func (s *MemoryStore) WithinTx(ctx context.Context, _, _ string, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	watches := maps.Clone(s.watches)
	attempts := make(map[pairKey][]Attempt, len(s.attempts))
	for k, v := range s.attempts {
		attempts[k] = slices.Clone(v)
	}

	if err := fn(memTx{s}); err != nil {
		s.watches = watches
		s.attempts = attempts
		return err
	}
	return nil
}

func (s *MemoryStore) GetWatchProgress(ctx context.Context, userID, contentID string) (WatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.GetWatchProgress(ctx, userID, contentID)
}

func (s *MemoryStore) SaveWatchProgress(ctx context.Context, p WatchProgress) (WatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.SaveWatchProgress(ctx, p)
}

func (s *MemoryStore) ResetWatchProgress(ctx context.Context, userID, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.ResetWatchProgress(ctx, userID, contentID)
}

func (s *MemoryStore) CountAttempts(ctx context.Context, userID, contentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.CountAttempts(ctx, userID, contentID)
}

func (s *MemoryStore) HasSuccessfulAttempt(ctx context.Context, userID, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.HasSuccessfulAttempt(ctx, userID, contentID)
}

func (s *MemoryStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.CreateAttempt(ctx, a)
}

func (s *MemoryStore) DeleteAttempts(ctx context.Context, userID, contentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.DeleteAttempts(ctx, userID, contentID)
}

func (s *MemoryStore) WatchProgressFor(_ context.Context, userID string, contentIDs []string) (map[string]WatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]WatchProgress)
	for _, id := range contentIDs {
		if p, ok := s.watches[pairKey{userID, id}]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) AttemptSummariesFor(_ context.Context, userID string, contentIDs []string) (map[string]AttemptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]AttemptSummary)
	for _, id := range contentIDs {
		list := s.attempts[pairKey{userID, id}]
		if len(list) == 0 {
			continue
		}
		sum := AttemptSummary{Count: len(list)}
		for _, a := range list {
			if a.IsSuccessful {
				sum.Succeeded = true
				break
			}
		}
		out[id] = sum
	}
	return out, nil
}

func (s *MemoryStore) ActivityFor(_ context.Context, contentIDs []string) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(contentIDs))
	for _, id := range contentIDs {
		wanted[id] = true
	}

	var act Activity
	for k, p := range s.watches {
		if wanted[k.contentID] {
			act.Watches = append(act.Watches, p)
		}
	}
	for k, list := range s.attempts {
		if wanted[k.contentID] {
			act.Attempts = append(act.Attempts, list...)
		}
	}

	sort.Slice(act.Watches, func(i, j int) bool {
		if act.Watches[i].UserID != act.Watches[j].UserID {
			return act.Watches[i].UserID < act.Watches[j].UserID
		}
		return act.Watches[i].ContentID < act.Watches[j].ContentID
	})
	sort.Slice(act.Attempts, func(i, j int) bool {
		a, b := act.Attempts[i], act.Attempts[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.ContentID != b.ContentID {
			return a.ContentID < b.ContentID
		}
		return a.AttemptNumber < b.AttemptNumber
	})
	return act, nil
}

// memTx operates on the store maps; callers hold s.mu.
type memTx struct {
	s *MemoryStore
}

func (t memTx) GetWatchProgress(_ context.Context, userID, contentID string) (WatchProgress, error) {
	p, ok := t.s.watches[pairKey{userID, contentID}]
	if !ok {
		return WatchProgress{}, ErrNotFound
	}
	return p, nil
}

func (t memTx) SaveWatchProgress(_ context.Context, p WatchProgress) (WatchProgress, error) {
	if p.UserID == "" || p.ContentID == "" {
		return WatchProgress{}, fmt.Errorf("user_id and content_id are required")
	}
	p.UpdatedAt = t.s.now()
	t.s.watches[pairKey{p.UserID, p.ContentID}] = p
	return p, nil
}

func (t memTx) ResetWatchProgress(_ context.Context, userID, contentID string) (bool, error) {
	key := pairKey{userID, contentID}
	p, ok := t.s.watches[key]
	if !ok {
		return false, nil
	}
	p.WatchedDuration = 0
	p.IsCompleted = false
	p.UpdatedAt = t.s.now()
	t.s.watches[key] = p
	return true, nil
}

func (t memTx) CountAttempts(_ context.Context, userID, contentID string) (int, error) {
	return len(t.s.attempts[pairKey{userID, contentID}]), nil
}

func (t memTx) HasSuccessfulAttempt(_ context.Context, userID, contentID string) (bool, error) {
	for _, a := range t.s.attempts[pairKey{userID, contentID}] {
		if a.IsSuccessful {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	key := pairKey{a.UserID, a.ContentID}
	if a.UserID == "" || a.ContentID == "" {
		return Attempt{}, fmt.Errorf("user_id and content_id are required")
	}
	if want := len(t.s.attempts[key]) + 1; a.AttemptNumber != want {
		return Attempt{}, fmt.Errorf("attempt_number %d out of sequence, want %d", a.AttemptNumber, want)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = t.s.now()
	}
	t.s.attempts[key] = append(t.s.attempts[key], a)
	return a, nil
}

func (t memTx) DeleteAttempts(_ context.Context, userID, contentID string) (int, error) {
	key := pairKey{userID, contentID}
	n := len(t.s.attempts[key])
	delete(t.s.attempts, key)
	return n, nil
}
