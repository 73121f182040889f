package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-interaction-service/internal/domain"
)

// QuestionLoader fetches questions from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// QuestionRepository caches questions in Redis (hash per question) and falls back to a loader on miss.
// Stored as: HSET question:{id} title .. body .. difficulty .. subject .. owner_id .. video_url .. pattern <json array>
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := questionKey(questionID)

	if q, ok := r.fromCache(ctx, questionID, key); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := r.fromCache(ctx, questionID, key); ok {
			return q, nil
		}

		question, err := r.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		pattern, err := json.Marshal(question.CorrectAnswerPattern)
		if err != nil {
			return domain.Question{}, err
		}
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key,
			"title", question.Title,
			"body", question.Body,
			"difficulty", question.Difficulty,
			"subject", string(question.Subject),
			"owner_id", question.OwnerID,
			"video_url", question.VideoURL,
			"pattern", string(pattern),
		)
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *QuestionRepository) fromCache(ctx context.Context, questionID, key string) (domain.Question, bool) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.Question{}, false
	}
	return buildQuestionFromCache(questionID, fields)
}

func buildQuestionFromCache(questionID string, fields map[string]string) (domain.Question, bool) {
	difficulty, err := strconv.Atoi(fields["difficulty"])
	if err != nil {
		return domain.Question{}, false
	}
	var pattern []string
	if raw := fields["pattern"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &pattern); err != nil {
			return domain.Question{}, false
		}
	}
	return domain.Question{
		ID:                   questionID,
		Title:                fields["title"],
		Body:                 fields["body"],
		Difficulty:           difficulty,
		Subject:              domain.Subject(fields["subject"]),
		CorrectAnswerPattern: pattern,
		OwnerID:              fields["owner_id"],
		VideoURL:             fields["video_url"],
	}, true
}

func questionKey(questionID string) string {
	return "question:" + questionID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
