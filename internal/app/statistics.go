package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"quiz-interaction-service/internal/domain"
)

// StatisticsStore persists one snapshot per user. GetStatistics returns an empty
// snapshot for users that have never answered.
type StatisticsStore interface {
	GetStatistics(ctx context.Context, userID string) (domain.UserStatistics, error)
	SaveStatistics(ctx context.Context, stats domain.UserStatistics) error
}

// Outcome is a graded answer as seen by the aggregator.
type Outcome struct {
	Subject domain.Subject
	Correct bool
	At      time.Time
}

// StatisticsAggregator folds graded answers into per-user snapshots.
// Updates for one user are serialized; different users never contend.
type StatisticsAggregator struct {
	store  StatisticsStore
	locks  keyedMutex
	logger *zap.Logger
}

func NewStatisticsAggregator(store StatisticsStore, logger *zap.Logger) *StatisticsAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsAggregator{store: store, logger: logger}
}

// RecordAnswer applies one outcome to the user's snapshot and persists it.
func (a *StatisticsAggregator) RecordAnswer(ctx context.Context, userID string, subject domain.Subject, correct bool, answeredAt time.Time) (domain.UserStatistics, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()

	stats, err := a.store.GetStatistics(ctx, userID)
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("load statistics: %w", err)
	}
	stats = applyOutcome(stats, Outcome{Subject: subject, Correct: correct, At: answeredAt})
	if err := a.store.SaveStatistics(ctx, stats); err != nil {
		return domain.UserStatistics{}, fmt.Errorf("save statistics: %w", err)
	}
	return stats, nil
}

// Snapshot returns the current statistics for userID.
func (a *StatisticsAggregator) Snapshot(ctx context.Context, userID string) (domain.UserStatistics, error) {
	stats, err := a.store.GetStatistics(ctx, userID)
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("load statistics: %w", err)
	}
	return stats, nil
}

// Replay rebuilds the snapshot from scratch using the full history, oldest first.
func (a *StatisticsAggregator) Replay(ctx context.Context, userID string, history []Outcome) (domain.UserStatistics, error) {
	ordered := make([]Outcome, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})

	unlock := a.locks.Lock(userID)
	defer unlock()

	stats := domain.NewUserStatistics(userID)
	for _, outcome := range ordered {
		stats = applyOutcome(stats, outcome)
	}
	if err := a.store.SaveStatistics(ctx, stats); err != nil {
		return domain.UserStatistics{}, fmt.Errorf("save statistics: %w", err)
	}
	a.logger.Info("statistics replayed",
		zap.String("user_id", userID),
		zap.Int("answers", stats.TotalAnswers),
		zap.Int("streak", stats.Streak),
	)
	return stats, nil
}

// Level is ceil(correct / 5).
func Level(correctAnswers int) int {
	if correctAnswers <= 0 {
		return 0
	}
	return (correctAnswers + 4) / 5
}

// HistoricalStreak counts the run of correct answers starting from the most recent one.
func HistoricalStreak(answers []domain.Answer) int {
	ordered := make([]domain.Answer, len(answers))
	copy(ordered, answers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	streak := 0
	for _, answer := range ordered {
		if !answer.Correct {
			break
		}
		streak++
	}
	return streak
}

func applyOutcome(stats domain.UserStatistics, outcome Outcome) domain.UserStatistics {
	next := stats
	next.Subjects = make(map[domain.Subject]domain.SubjectProgress, len(stats.Subjects)+1)
	for subject, progress := range stats.Subjects {
		next.Subjects[subject] = progress
	}
	next.Daily = make(map[string]domain.SubjectProgress, len(stats.Daily)+1)
	for day, progress := range stats.Daily {
		next.Daily[day] = progress
	}

	next.TotalAnswers++
	if outcome.Correct {
		next.CorrectAnswers++
		next.Streak++
	} else {
		next.Streak = 0
	}
	if next.Streak > next.BestStreak {
		next.BestStreak = next.Streak
	}
	next.Level = Level(next.CorrectAnswers)

	subject := next.Subjects[outcome.Subject]
	subject.Total++
	day := next.Daily[dayKey(outcome.At)]
	day.Total++
	if outcome.Correct {
		subject.Correct++
		day.Correct++
	}
	next.Subjects[outcome.Subject] = subject
	next.Daily[dayKey(outcome.At)] = day
	next.UpdatedAt = outcome.At
	return next
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
