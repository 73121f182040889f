package postgres

import (
	"context"
	"fmt"
)

// UserDirectory checks the users table kept in sync by the identity provider.
type UserDirectory struct {
	db DBTX
}

func NewUserDirectory(db DBTX) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// UpsertUser records a user id; used for seeding and by tests.
func (d *UserDirectory) UpsertUser(ctx context.Context, userID, name string) error {
	_, err := d.db.Exec(ctx, `
		INSERT INTO users (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, userID, name)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
