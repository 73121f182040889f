package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"quiz-interaction-service/internal/domain"
)

const statisticsKeyPrefix = "stats:user:"

// StatisticsStore keeps each user's snapshot as a JSON string, without expiry.
type StatisticsStore struct {
	client *redis.Client
}

func NewStatisticsStore(client *redis.Client) *StatisticsStore {
	return &StatisticsStore{client: client}
}

func (s *StatisticsStore) GetStatistics(ctx context.Context, userID string) (domain.UserStatistics, error) {
	data, err := s.client.Get(ctx, statisticsKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewUserStatistics(userID), nil
	}
	if err != nil {
		return domain.UserStatistics{}, err
	}
	stats := domain.NewUserStatistics(userID)
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.UserStatistics{}, err
	}
	if stats.Subjects == nil {
		stats.Subjects = make(map[domain.Subject]domain.SubjectProgress)
	}
	if stats.Daily == nil {
		stats.Daily = make(map[string]domain.SubjectProgress)
	}
	return stats, nil
}

func (s *StatisticsStore) SaveStatistics(ctx context.Context, stats domain.UserStatistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statisticsKeyPrefix+stats.UserID, data, 0).Err()
}
