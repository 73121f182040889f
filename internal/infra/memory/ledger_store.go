package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-interaction-service/internal/domain"
)

// LedgerStore keeps like and view membership in maps keyed by question.
type LedgerStore struct {
	mu    sync.RWMutex
	likes map[string]map[string]struct{}
	views map[string]map[string]struct{}
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		likes: make(map[string]map[string]struct{}),
		views: make(map[string]map[string]struct{}),
	}
}

func (s *LedgerStore) HasLike(_ context.Context, questionID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[questionID][userID]
	return ok, nil
}

func (s *LedgerStore) AddLike(_ context.Context, questionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add(s.likes, questionID, userID) {
		return domain.ErrConflict
	}
	return nil
}

func (s *LedgerStore) RemoveLike(_ context.Context, questionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.likes[questionID]
	if !ok {
		return nil
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(s.likes, questionID)
	}
	return nil
}

func (s *LedgerStore) CountLikes(_ context.Context, questionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.likes[questionID]), nil
}

func (s *LedgerStore) AddView(_ context.Context, questionID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return add(s.views, questionID, userID), nil
}

func (s *LedgerStore) CountViews(_ context.Context, questionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views[questionID]), nil
}

func (s *LedgerStore) TopLiked(_ context.Context, limit int) ([]domain.QuestionLikes, error) {
	s.mu.RLock()
	top := make([]domain.QuestionLikes, 0, len(s.likes))
	for questionID, members := range s.likes {
		top = append(top, domain.QuestionLikes{QuestionID: questionID, Likes: len(members)})
	}
	s.mu.RUnlock()

	sort.Slice(top, func(i, j int) bool {
		if top[i].Likes != top[j].Likes {
			return top[i].Likes > top[j].Likes
		}
		return top[i].QuestionID < top[j].QuestionID
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func add(sets map[string]map[string]struct{}, questionID, userID string) bool {
	members, ok := sets[questionID]
	if !ok {
		members = make(map[string]struct{})
		sets[questionID] = members
	}
	if _, exists := members[userID]; exists {
		return false
	}
	members[userID] = struct{}{}
	return true
}
