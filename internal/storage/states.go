package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/musicbot/internal/conversation"
)

type stateRow struct {
	UserID       int64          `db:"user_id"`
	Step         sql.NullString `db:"step"`
	Function     sql.NullString `db:"function"`
	Mode         sql.NullString `db:"mode"`
	Instrumental sql.NullBool   `db:"instrumental"`
	Style        sql.NullString `db:"style"`
	Prompt       sql.NullString `db:"prompt"`
}

func (r stateRow) decode() (*conversation.State, error) {
	step, err := conversation.ParseStep(r.Step.String)
	if err != nil {
		return nil, err
	}
	fn, err := conversation.ParseFunction(r.Function.String)
	if err != nil {
		return nil, err
	}
	mode, err := conversation.ParseMode(r.Mode.String)
	if err != nil {
		return nil, err
	}
	st := &conversation.State{Step: step, Function: fn, Mode: mode}
	if r.Instrumental.Valid {
		v := r.Instrumental.Bool
		st.Instrumental = &v
	}
	if r.Style.Valid {
		v := r.Style.String
		st.Style = &v
	}
	if r.Prompt.Valid {
		v := r.Prompt.String
		st.Prompt = &v
	}
	return st, nil
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const loadStateSQL = `
SELECT user_id, step, function, mode, instrumental, style, prompt
FROM conversation_states
WHERE user_id = $1
FOR UPDATE`

// LoadState returns the stored state, or nil when the user is idle. The row
// stays locked until the transaction ends. Unknown enum values are reported
// as errors.
func (r *repo) LoadState(ctx context.Context, userID int64) (*conversation.State, error) {
	var row stateRow
	err := sqlx.GetContext(ctx, r.ext, &row, loadStateSQL, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %d: %w", userID, err)
	}
	st, err := row.decode()
	if err != nil {
		return nil, fmt.Errorf("load state %d: %w", userID, err)
	}
	return st, nil
}

const saveStateSQL = `
INSERT INTO conversation_states (user_id, step, function, mode, instrumental, style, prompt, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (user_id) DO UPDATE
SET step = EXCLUDED.step,
    function = EXCLUDED.function,
    mode = EXCLUDED.mode,
    instrumental = EXCLUDED.instrumental,
    style = EXCLUDED.style,
    prompt = EXCLUDED.prompt,
    updated_at = now()`

// SaveState replaces the user's state with st.
func (r *repo) SaveState(ctx context.Context, userID int64, st conversation.State) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("save state %d: %w", userID, err)
	}
	var instrumental, style, prompt any
	if st.Instrumental != nil {
		instrumental = *st.Instrumental
	}
	if st.Style != nil {
		style = *st.Style
	}
	if st.Prompt != nil {
		prompt = *st.Prompt
	}
	_, err := r.ext.ExecContext(ctx, saveStateSQL,
		userID,
		optString(string(st.Step)),
		optString(string(st.Function)),
		optString(string(st.Mode)),
		instrumental, style, prompt,
	)
	if err != nil {
		return fmt.Errorf("save state %d: %w", userID, err)
	}
	return nil
}

// DeleteState returns the user to idle. Deleting a missing row is not an error.
func (r *repo) DeleteState(ctx context.Context, userID int64) error {
	if _, err := r.ext.ExecContext(ctx, `DELETE FROM conversation_states WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete state %d: %w", userID, err)
	}
	return nil
}
