package memory

import (
	"context"
	"sync"

	"quiz-interaction-service/internal/domain"
)

// AnswerStore keeps answers per user in insertion order.
type AnswerStore struct {
	mu     sync.RWMutex
	byUser map[string][]domain.Answer
	ids    map[string]struct{}
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		byUser: make(map[string][]domain.Answer),
		ids:    make(map[string]struct{}),
	}
}

func (s *AnswerStore) CreateAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[answer.ID]; ok {
		return domain.ErrConflict
	}
	s.ids[answer.ID] = struct{}{}
	s.byUser[answer.UserID] = append(s.byUser[answer.UserID], answer)
	return nil
}

func (s *AnswerStore) ListAnswersByUser(_ context.Context, userID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := s.byUser[userID]
	out := make([]domain.Answer, len(answers))
	copy(out, answers)
	return out, nil
}

// Durable is false: only answers submitted since the process started are kept.
func (s *AnswerStore) Durable() bool {
	return false
}
