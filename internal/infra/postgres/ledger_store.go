package postgres

import (
	"context"
	"fmt"

	"quiz-interaction-service/internal/domain"
)

// LedgerStore relies on the (question_id, user_id) primary keys of likes and
// viewed_questions for uniqueness.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) HasLike(ctx context.Context, questionID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE question_id = $1 AND user_id = $2)`,
		questionID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return exists, nil
}

func (s *LedgerStore) AddLike(ctx context.Context, questionID, userID string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO likes (question_id, user_id) VALUES ($1, $2)`, questionID, userID)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

func (s *LedgerStore) RemoveLike(ctx context.Context, questionID, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM likes WHERE question_id = $1 AND user_id = $2`, questionID, userID); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

func (s *LedgerStore) CountLikes(ctx context.Context, questionID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM likes WHERE question_id = $1`, questionID)
}

func (s *LedgerStore) AddView(ctx context.Context, questionID, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO viewed_questions (question_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		questionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("insert view: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *LedgerStore) CountViews(ctx context.Context, questionID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM viewed_questions WHERE question_id = $1`, questionID)
}

func (s *LedgerStore) TopLiked(ctx context.Context, limit int) ([]domain.QuestionLikes, error) {
	rows, err := s.db.Query(ctx, `
		SELECT question_id, COUNT(*) AS likes
		FROM likes
		GROUP BY question_id
		ORDER BY likes DESC, question_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular: %w", err)
	}
	defer rows.Close()

	var top []domain.QuestionLikes
	for rows.Next() {
		var entry domain.QuestionLikes
		if err := rows.Scan(&entry.QuestionID, &entry.Likes); err != nil {
			return nil, fmt.Errorf("scan popular: %w", err)
		}
		top = append(top, entry)
	}
	return top, rows.Err()
}

func (s *LedgerStore) count(ctx context.Context, query, questionID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, query, questionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
