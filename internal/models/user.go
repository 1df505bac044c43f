package models

import "time"

// TelegramUser is the identity snapshot carried by every inbound update.
type TelegramUser struct {
	ID        int64
	Username  string
	FirstName string
}

// User is the persisted account, keyed by the Telegram user id.
type User struct {
	ID             int64     `db:"id"`
	TelegramUserID int64     `db:"telegram_user_id"`
	Username       *string   `db:"username"`
	FirstName      *string   `db:"first_name"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
