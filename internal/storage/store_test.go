package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/models"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

var stateCols = []string{"user_id", "step", "function", "mode", "instrumental", "style", "prompt"}

var orderCols = []string{
	"id", "user_id", "chat_id", "function", "mode", "instrumental", "style", "prompt", "model",
	"price_stars", "currency", "status", "invoice_payload", "payment_charge_id", "payer_telegram_id",
	"task_id", "failure_reason", "created_at", "paid_at", "updated_at",
}

func TestUpsertUserRefreshesSnapshot(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users .* ON CONFLICT \(telegram_user_id\) DO UPDATE`).
		WithArgs(int64(42), "neo", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "telegram_user_id", "username", "first_name", "created_at", "updated_at"}).
			AddRow(int64(7), int64(42), "neo", nil, now, now))
	mock.ExpectCommit()

	var got models.User
	err := store.InTx(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.UpsertUser(context.Background(), models.TelegramUser{ID: 42, Username: "neo"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	require.NotNil(t, got.Username)
	assert.Equal(t, "neo", *got.Username)
	assert.Nil(t, got.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadStateMissingIsIdle(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, step .* FROM conversation_states .* FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(stateCols))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		st, err := tx.LoadState(context.Background(), 7)
		assert.Nil(t, st)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadStateDecodesFields(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM conversation_states`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow(int64(7), "style", "generation", "custom", true, nil, nil))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		st, err := tx.LoadState(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, conversation.StepStyle, st.Step)
		assert.Equal(t, conversation.ModeCustom, st.Mode)
		require.NotNil(t, st.Instrumental)
		assert.True(t, *st.Instrumental)
		assert.Nil(t, st.Style)
		return nil
	})
	require.NoError(t, err)
}

func TestLoadStateRejectsUnknownStep(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM conversation_states`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow(int64(7), "lyrics", nil, nil, nil, nil, nil))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.LoadState(context.Background(), 7)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, conversation.ErrUnknownStep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStateWritesNullsForUnsetFields(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversation_states .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(int64(7), "mode", "generation", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.SaveState(context.Background(), 7, conversation.State{Step: conversation.StepMode, Function: conversation.FunctionGeneration})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStateRejectsInconsistentState(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.SaveState(context.Background(), 7, conversation.State{Step: conversation.StepStyle})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, conversation.ErrInconsistent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderAndInvoice(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(7), int64(100), "generation", "classic", false, "", "upbeat jazz piano", "V4_5ALL", 6, "XTR", "DRAFT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(55), now, now))
	mock.ExpectExec(`UPDATE orders\s+SET status = 'INVOICED'`).
		WithArgs(int64(55), "order:55").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o := &models.Order{
		UserID: 7, ChatID: 100, Function: "generation", Mode: "classic",
		Prompt: "upbeat jazz piano", Model: "V4_5ALL", PriceStars: 6,
	}
	err := store.InTx(context.Background(), func(tx Tx) error {
		if err := tx.CreateOrder(context.Background(), o); err != nil {
			return err
		}
		return tx.SetOrderInvoiced(context.Background(), o.ID, "order:55")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), o.ID)
	assert.Equal(t, models.OrderDraft, o.Status)
	assert.Equal(t, models.CurrencyStars, o.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPaymentIsConditional(t *testing.T) {
	store, mock := newMock(t)
	claim := `UPDATE orders\s+SET status = 'PAID'.*WHERE id = \$1 AND status IN \('DRAFT', 'INVOICED'\)`
	mock.ExpectBegin()
	mock.ExpectExec(claim).WithArgs(int64(55), "ch-1", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(claim).WithArgs(int64(55), "ch-1", int64(42)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var first, second bool
	require.NoError(t, store.InTx(context.Background(), func(tx Tx) (err error) {
		first, err = tx.ClaimPayment(context.Background(), 55, "ch-1", 42)
		return err
	}))
	require.NoError(t, store.InTx(context.Background(), func(tx Tx) (err error) {
		second, err = tx.ClaimPayment(context.Background(), 55, "ch-1", 42)
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \$1`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(orderCols))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.GetOrder(context.Background(), 9)
		return err
	})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderRejectsUnknownStatus(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \$1`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
		int64(9), int64(7), int64(100), "generation", "classic", false, "", "p", "m",
		6, "XTR", "REFUNDED", "order:9", nil, nil,
		nil, nil, now, nil, now,
	))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.GetOrder(context.Background(), 9)
		return err
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSubmittedRequiresPaid(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`SET status = 'SUBMITTED'`).WithArgs(int64(55), "abc123").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.MarkSubmitted(context.Background(), 55, "abc123")
	})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
