package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/musicbot/internal/models"
)

const upsertUserSQL = `
INSERT INTO users (telegram_user_id, username, first_name)
VALUES ($1, $2, $3)
ON CONFLICT (telegram_user_id) DO UPDATE
SET username = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    updated_at = now()
RETURNING id, telegram_user_id, username, first_name, created_at, updated_at`

// UpsertUser creates the user on first contact and refreshes the name
// snapshot afterwards.
func (r *repo) UpsertUser(ctx context.Context, u models.TelegramUser) (models.User, error) {
	var out models.User
	err := sqlx.GetContext(ctx, r.ext, &out, upsertUserSQL, u.ID, nullString(u.Username), nullString(u.FirstName))
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return out, nil
}

func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
