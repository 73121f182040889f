package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"quiz-interaction-service/internal/domain"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 100
)

// LedgerStore keeps like and view membership per (question, user) pair.
// AddLike returns domain.ErrConflict when the pair already has a like.
// AddView reports whether a new row was created.
type LedgerStore interface {
	HasLike(ctx context.Context, questionID, userID string) (bool, error)
	AddLike(ctx context.Context, questionID, userID string) error
	RemoveLike(ctx context.Context, questionID, userID string) error
	CountLikes(ctx context.Context, questionID string) (int, error)
	AddView(ctx context.Context, questionID, userID string) (bool, error)
	CountViews(ctx context.Context, questionID string) (int, error)
	TopLiked(ctx context.Context, limit int) ([]domain.QuestionLikes, error)
}

// EngagementLedger toggles likes and records views with per-pair serialization.
type EngagementLedger struct {
	questions QuestionRepository
	store     LedgerStore
	likeLocks keyedMutex
	viewLocks keyedMutex
	logger    *zap.Logger
}

func NewEngagementLedger(questions QuestionRepository, store LedgerStore, logger *zap.Logger) *EngagementLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementLedger{questions: questions, store: store, logger: logger}
}

// ToggleLike flips the like of userID on questionID and returns the new total.
func (l *EngagementLedger) ToggleLike(ctx context.Context, questionID, userID string) (domain.LikeResult, error) {
	if _, err := l.questions.GetQuestion(ctx, questionID); err != nil {
		return domain.LikeResult{}, err
	}

	unlock := l.likeLocks.Lock(pairKey(questionID, userID))
	defer unlock()

	state, err := l.toggleOnce(ctx, questionID, userID)
	if errors.Is(err, domain.ErrConflict) {
		l.logger.Debug("like toggle conflicted, retrying",
			zap.String("question_id", questionID),
			zap.String("user_id", userID),
		)
		state, err = l.toggleOnce(ctx, questionID, userID)
	}
	if err != nil {
		return domain.LikeResult{}, err
	}

	count, err := l.store.CountLikes(ctx, questionID)
	if err != nil {
		return domain.LikeResult{}, fmt.Errorf("count likes: %w", err)
	}
	return domain.LikeResult{State: state, Count: count}, nil
}

func (l *EngagementLedger) toggleOnce(ctx context.Context, questionID, userID string) (domain.LikeState, error) {
	liked, err := l.store.HasLike(ctx, questionID, userID)
	if err != nil {
		return "", fmt.Errorf("check like: %w", err)
	}
	if liked {
		if err := l.store.RemoveLike(ctx, questionID, userID); err != nil {
			return "", fmt.Errorf("remove like: %w", err)
		}
		return domain.LikeRemoved, nil
	}
	if err := l.store.AddLike(ctx, questionID, userID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", err
		}
		return "", fmt.Errorf("add like: %w", err)
	}
	return domain.LikeAdded, nil
}

// RecordView marks questionID as viewed by userID. Repeated calls are no-ops.
func (l *EngagementLedger) RecordView(ctx context.Context, questionID, userID string) (domain.ViewResult, error) {
	if _, err := l.questions.GetQuestion(ctx, questionID); err != nil {
		return domain.ViewResult{}, err
	}

	unlock := l.viewLocks.Lock(pairKey(questionID, userID))
	defer unlock()

	created, err := l.store.AddView(ctx, questionID, userID)
	if errors.Is(err, domain.ErrConflict) {
		created, err = false, nil
	}
	if err != nil {
		return domain.ViewResult{}, fmt.Errorf("add view: %w", err)
	}

	count, err := l.store.CountViews(ctx, questionID)
	if err != nil {
		return domain.ViewResult{}, fmt.Errorf("count views: %w", err)
	}
	return domain.ViewResult{FirstView: created, Count: count}, nil
}

// Counts returns the current like and view totals for questionID.
func (l *EngagementLedger) Counts(ctx context.Context, questionID string) (domain.Engagement, error) {
	if _, err := l.questions.GetQuestion(ctx, questionID); err != nil {
		return domain.Engagement{}, err
	}
	likes, err := l.store.CountLikes(ctx, questionID)
	if err != nil {
		return domain.Engagement{}, fmt.Errorf("count likes: %w", err)
	}
	views, err := l.store.CountViews(ctx, questionID)
	if err != nil {
		return domain.Engagement{}, fmt.Errorf("count views: %w", err)
	}
	return domain.Engagement{QuestionID: questionID, Likes: likes, Views: views}, nil
}

// Popular ranks questions by like count, most liked first.
func (l *EngagementLedger) Popular(ctx context.Context, limit int) ([]domain.QuestionLikes, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}
	top, err := l.store.TopLiked(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top liked: %w", err)
	}
	return top, nil
}
