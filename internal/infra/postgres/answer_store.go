package postgres

import (
	"context"
	"fmt"

	"quiz-interaction-service/internal/domain"
)

// AnswerStore persists graded answers.
type AnswerStore struct {
	db DBTX
}

func NewAnswerStore(db DBTX) *AnswerStore {
	return &AnswerStore{db: db}
}

func (s *AnswerStore) CreateAnswer(ctx context.Context, answer domain.Answer) error {
	query := `
		INSERT INTO answers (id, question_id, user_id, content, correct, matched_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		answer.ID, answer.QuestionID, answer.UserID, answer.Text, answer.Correct, answer.MatchedCount, answer.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) ListAnswersByUser(ctx context.Context, userID string) ([]domain.Answer, error) {
	query := `
		SELECT id, question_id, user_id, content, correct, matched_count, created_at
		FROM answers
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Text, &a.Correct, &a.MatchedCount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

func (s *AnswerStore) Durable() bool {
	return true
}
