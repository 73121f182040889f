package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-interaction-service/internal/domain"
)

// QuestionRepository loads question records (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AnswerStore persists graded answers. ListAnswersByUser returns them oldest first.
// Durable reports whether the store holds every answer ever submitted, not just the
// ones this process has seen.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswersByUser(ctx context.Context, userID string) ([]domain.Answer, error)
	Durable() bool
}

// UserDirectory answers whether the external identity provider knows a user.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// ServiceDeps groups the collaborators of InteractionService.
type ServiceDeps struct {
	Questions   QuestionRepository
	Answers     AnswerStore
	Users       UserDirectory
	Statistics  *StatisticsAggregator
	Ledger      *EngagementLedger
	Broadcaster *TopicBroadcaster
	Logger      *zap.Logger
}

// AnswerOutcome is what the submitter gets back from CreateAnswer.
type AnswerOutcome struct {
	Answer     domain.Answer         `json:"answer"`
	Verdict    domain.Verdict        `json:"verdict"`
	Statistics domain.UserStatistics `json:"statistics"`
	Delivered  int                   `json:"-"`
}

// InteractionService runs the answer/like/view pipelines and publishes their events.
type InteractionService struct {
	questions   QuestionRepository
	answers     AnswerStore
	users       UserDirectory
	stats       *StatisticsAggregator
	ledger      *EngagementLedger
	broadcaster *TopicBroadcaster
	likeLocks   keyedMutex
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

func NewInteractionService(deps ServiceDeps) *InteractionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionService{
		questions:   deps.Questions,
		answers:     deps.Answers,
		users:       deps.Users,
		stats:       deps.Statistics,
		ledger:      deps.Ledger,
		broadcaster: deps.Broadcaster,
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *InteractionService) WithClock(now func() time.Time) *InteractionService {
	s.now = now
	return s
}

// CreateAnswer validates, grades, persists, updates statistics and publishes NEW_ANSWER, in that order.
func (s *InteractionService) CreateAnswer(ctx context.Context, questionID, userID, text string) (AnswerOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AnswerOutcome{}, domain.NewValidationError("content", "must not be blank")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return AnswerOutcome{}, err
	}
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return AnswerOutcome{}, err
	}

	verdict := Grade(text, question.CorrectAnswerPattern)

	answer := domain.Answer{
		ID:           s.newID(),
		QuestionID:   question.ID,
		UserID:       userID,
		Text:         text,
		Correct:      verdict.Correct,
		MatchedCount: verdict.MatchedCount,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.answers.CreateAnswer(ctx, answer); err != nil {
		return AnswerOutcome{}, fmt.Errorf("create answer: %w", err)
	}

	// The answer is the source of truth; a failed snapshot update is repaired by replay.
	stats, err := s.stats.RecordAnswer(ctx, userID, question.Subject, verdict.Correct, answer.CreatedAt)
	if err != nil {
		s.logger.Error("statistics update failed",
			zap.String("user_id", userID),
			zap.String("answer_id", answer.ID),
			zap.Error(err),
		)
		stats = s.previousSnapshot(ctx, userID)
	}

	delivered := s.broadcaster.Publish(question.ID, domain.NewAnswerEvent(answer))
	s.logger.Debug("answer created",
		zap.String("question_id", question.ID),
		zap.String("user_id", userID),
		zap.Bool("correct", verdict.Correct),
		zap.Int("matched", verdict.MatchedCount),
		zap.Int("delivered", delivered),
	)

	return AnswerOutcome{Answer: answer, Verdict: verdict, Statistics: stats, Delivered: delivered}, nil
}

// ToggleLike flips the user's like and publishes LIKE_ADDED or LIKE_REMOVED with the new count.
func (s *InteractionService) ToggleLike(ctx context.Context, questionID, userID string) (domain.LikeResult, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.LikeResult{}, err
	}

	// Counts reach subscribers in the order they were computed.
	unlock := s.likeLocks.Lock(questionID)
	defer unlock()

	result, err := s.ledger.ToggleLike(ctx, questionID, userID)
	if err != nil {
		return domain.LikeResult{}, err
	}
	s.broadcaster.Publish(questionID, domain.LikeEvent(questionID, result))
	return result, nil
}

// RecordView records a first-time view. Views are not broadcast.
func (s *InteractionService) RecordView(ctx context.Context, questionID, userID string) (domain.ViewResult, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.ViewResult{}, err
	}
	return s.ledger.RecordView(ctx, questionID, userID)
}

// Question returns the question with its current engagement counters.
func (s *InteractionService) Question(ctx context.Context, questionID string) (domain.Question, domain.Engagement, error) {
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, domain.Engagement{}, err
	}
	engagement, err := s.ledger.Counts(ctx, questionID)
	if err != nil {
		return domain.Question{}, domain.Engagement{}, err
	}
	return question, engagement, nil
}

// Popular returns the most liked questions.
func (s *InteractionService) Popular(ctx context.Context, limit int) ([]domain.QuestionLikes, error) {
	return s.ledger.Popular(ctx, limit)
}

// Statistics returns the user's snapshot.
func (s *InteractionService) Statistics(ctx context.Context, userID string) (domain.UserStatistics, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.UserStatistics{}, err
	}
	return s.stats.Snapshot(ctx, userID)
}

// ReplayStatistics recomputes the user's snapshot from every answer they ever submitted.
// It refuses to run on a partial history, which would overwrite the snapshot with less.
func (s *InteractionService) ReplayStatistics(ctx context.Context, userID string) (domain.UserStatistics, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.UserStatistics{}, err
	}
	if !s.answers.Durable() {
		return domain.UserStatistics{}, domain.ErrHistoryUnavailable
	}
	answers, err := s.answers.ListAnswersByUser(ctx, userID)
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("list answers: %w", err)
	}

	subjects := make(map[string]domain.Subject)
	history := make([]Outcome, 0, len(answers))
	for _, answer := range answers {
		subject, ok := subjects[answer.QuestionID]
		if !ok {
			question, err := s.questions.GetQuestion(ctx, answer.QuestionID)
			if err != nil {
				return domain.UserStatistics{}, err
			}
			subject = question.Subject
			subjects[answer.QuestionID] = subject
		}
		history = append(history, Outcome{Subject: subject, Correct: answer.Correct, At: answer.CreatedAt})
	}
	return s.stats.Replay(ctx, userID, history)
}

// Subscribe attaches clientID to the question's topic.
func (s *InteractionService) Subscribe(ctx context.Context, questionID, clientID string) (*Subscription, error) {
	if _, err := s.questions.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	return s.broadcaster.Subscribe(questionID, clientID), nil
}

// Unsubscribe detaches a subscription; repeated calls are no-ops.
func (s *InteractionService) Unsubscribe(sub *Subscription) {
	s.broadcaster.Unsubscribe(sub)
}

// previousSnapshot is reported when the update after an answer fails; the stored answer
// is still counted once the snapshot is replayed.
func (s *InteractionService) previousSnapshot(ctx context.Context, userID string) domain.UserStatistics {
	stats, err := s.stats.Snapshot(ctx, userID)
	if err != nil {
		return domain.NewUserStatistics(userID)
	}
	return stats
}

func (s *InteractionService) requireUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("userId", "must not be blank")
	}
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}
