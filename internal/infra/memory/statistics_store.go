package memory

import (
	"context"
	"sync"

	"quiz-interaction-service/internal/domain"
)

// StatisticsStore keeps one snapshot per user.
type StatisticsStore struct {
	mu    sync.RWMutex
	stats map[string]domain.UserStatistics
}

func NewStatisticsStore() *StatisticsStore {
	return &StatisticsStore{stats: make(map[string]domain.UserStatistics)}
}

func (s *StatisticsStore) GetStatistics(_ context.Context, userID string) (domain.UserStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[userID]
	if !ok {
		return domain.NewUserStatistics(userID), nil
	}
	return cloneStatistics(stats), nil
}

func (s *StatisticsStore) SaveStatistics(_ context.Context, stats domain.UserStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.UserID] = cloneStatistics(stats)
	return nil
}

func cloneStatistics(stats domain.UserStatistics) domain.UserStatistics {
	out := stats
	out.Subjects = make(map[domain.Subject]domain.SubjectProgress, len(stats.Subjects))
	for k, v := range stats.Subjects {
		out.Subjects[k] = v
	}
	out.Daily = make(map[string]domain.SubjectProgress, len(stats.Daily))
	for k, v := range stats.Daily {
		out.Daily[k] = v
	}
	return out
}
