package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"quiz-interaction-service/internal/domain"
)

// QuestionLoader loads question rows from Postgres.
type QuestionLoader struct {
	db DBTX
}

func NewQuestionLoader(db DBTX) *QuestionLoader {
	return &QuestionLoader{db: db}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	query := `
		SELECT id, title, body, difficulty, subject, correct_answer_pattern, owner_id, COALESCE(video_url, '')
		FROM questions
		WHERE id = $1
	`

	var q domain.Question
	var subject string
	err := l.db.QueryRow(ctx, query, questionID).Scan(
		&q.ID, &q.Title, &q.Body, &q.Difficulty, &subject, &q.CorrectAnswerPattern, &q.OwnerID, &q.VideoURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	q.Subject = domain.Subject(subject)
	return q, nil
}

// SaveQuestion upserts a question; used for seeding.
func (l *QuestionLoader) SaveQuestion(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO questions (id, title, body, difficulty, subject, correct_answer_pattern, owner_id, video_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			difficulty = EXCLUDED.difficulty,
			subject = EXCLUDED.subject,
			correct_answer_pattern = EXCLUDED.correct_answer_pattern,
			owner_id = EXCLUDED.owner_id,
			video_url = EXCLUDED.video_url,
			updated_at = now()
	`
	pattern := q.CorrectAnswerPattern
	if pattern == nil {
		pattern = []string{}
	}
	if _, err := l.db.Exec(ctx, query, q.ID, q.Title, q.Body, q.Difficulty, string(q.Subject), pattern, q.OwnerID, q.VideoURL); err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}
