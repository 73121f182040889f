package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-interaction-service/internal/domain"
)

const popularKey = "questions:popular"

// Membership and the popularity ZSET change together so the ranking never drifts from the sets.
var (
	addLikeScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
  redis.call('ZINCRBY', KEYS[2], 1, ARGV[2])
  return 1
end
return 0
`)
	removeLikeScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 1 then
  local score = tonumber(redis.call('ZINCRBY', KEYS[2], -1, ARGV[2]))
  if score <= 0 then
    redis.call('ZREM', KEYS[2], ARGV[2])
  end
  return 1
end
return 0
`)
)

// LedgerStore keeps likes and views as Redis sets:
//
//	SADD question:{id}:likes   {userID}
//	SADD question:{id}:viewers {userID}
//	ZINCRBY questions:popular  ±1 {questionID}
type LedgerStore struct {
	client *redis.Client
}

func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) HasLike(ctx context.Context, questionID, userID string) (bool, error) {
	return s.client.SIsMember(ctx, likesKey(questionID), userID).Result()
}

func (s *LedgerStore) AddLike(ctx context.Context, questionID, userID string) error {
	added, err := addLikeScript.Run(ctx, s.client, []string{likesKey(questionID), popularKey}, userID, questionID).Int()
	if err != nil {
		return fmt.Errorf("add like: %w", err)
	}
	if added == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *LedgerStore) RemoveLike(ctx context.Context, questionID, userID string) error {
	if err := removeLikeScript.Run(ctx, s.client, []string{likesKey(questionID), popularKey}, userID, questionID).Err(); err != nil {
		return fmt.Errorf("remove like: %w", err)
	}
	return nil
}

func (s *LedgerStore) CountLikes(ctx context.Context, questionID string) (int, error) {
	n, err := s.client.SCard(ctx, likesKey(questionID)).Result()
	return int(n), err
}

func (s *LedgerStore) AddView(ctx context.Context, questionID, userID string) (bool, error) {
	n, err := s.client.SAdd(ctx, viewersKey(questionID), userID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *LedgerStore) CountViews(ctx context.Context, questionID string) (int, error) {
	n, err := s.client.SCard(ctx, viewersKey(questionID)).Result()
	return int(n), err
}

// TopLiked reads the popularity ZSET, highest first.
func (s *LedgerStore) TopLiked(ctx context.Context, limit int) ([]domain.QuestionLikes, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, popularKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	top := make([]domain.QuestionLikes, 0, len(results))
	for _, result := range results {
		questionID, ok := result.Member.(string)
		if !ok {
			continue
		}
		top = append(top, domain.QuestionLikes{QuestionID: questionID, Likes: int(result.Score)})
	}
	return top, nil
}

func likesKey(questionID string) string {
	return "question:" + questionID + ":likes"
}

func viewersKey(questionID string) string {
	return "question:" + questionID + ":viewers"
}
