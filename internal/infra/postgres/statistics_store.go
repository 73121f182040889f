package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"quiz-interaction-service/internal/domain"
)

// StatisticsStore keeps one user_statistics row per user; breakdowns are JSONB.
type StatisticsStore struct {
	db DBTX
}

func NewStatisticsStore(db DBTX) *StatisticsStore {
	return &StatisticsStore{db: db}
}

func (s *StatisticsStore) GetStatistics(ctx context.Context, userID string) (domain.UserStatistics, error) {
	query := `
		SELECT total_answers, correct_answers, streak, best_streak, level, subjects, daily, updated_at
		FROM user_statistics
		WHERE user_id = $1
	`
	stats := domain.NewUserStatistics(userID)
	var subjects, daily []byte
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&stats.TotalAnswers, &stats.CorrectAnswers, &stats.Streak, &stats.BestStreak, &stats.Level,
		&subjects, &daily, &stats.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("select statistics: %w", err)
	}
	if len(subjects) > 0 {
		if err := json.Unmarshal(subjects, &stats.Subjects); err != nil {
			return domain.UserStatistics{}, fmt.Errorf("decode subjects: %w", err)
		}
	}
	if len(daily) > 0 {
		if err := json.Unmarshal(daily, &stats.Daily); err != nil {
			return domain.UserStatistics{}, fmt.Errorf("decode daily: %w", err)
		}
	}
	return stats, nil
}

func (s *StatisticsStore) SaveStatistics(ctx context.Context, stats domain.UserStatistics) error {
	subjects, err := json.Marshal(stats.Subjects)
	if err != nil {
		return err
	}
	daily, err := json.Marshal(stats.Daily)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO user_statistics (
			user_id, total_answers, correct_answers, streak, best_streak, level, subjects, daily, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_answers = EXCLUDED.total_answers,
			correct_answers = EXCLUDED.correct_answers,
			streak = EXCLUDED.streak,
			best_streak = EXCLUDED.best_streak,
			level = EXCLUDED.level,
			subjects = EXCLUDED.subjects,
			daily = EXCLUDED.daily,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.Exec(ctx, query,
		stats.UserID, stats.TotalAnswers, stats.CorrectAnswers, stats.Streak, stats.BestStreak, stats.Level,
		string(subjects), string(daily), stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert statistics: %w", err)
	}
	return nil
}
