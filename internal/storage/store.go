// Package storage persists users, orders and conversation states in
// PostgreSQL through sqlx.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/models"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("storage: not found")

// Tx is the set of operations available inside one transaction.
type Tx interface {
	UpsertUser(ctx context.Context, u models.TelegramUser) (models.User, error)

	LoadState(ctx context.Context, userID int64) (*conversation.State, error)
	SaveState(ctx context.Context, userID int64, st conversation.State) error
	DeleteState(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, o *models.Order) error
	SetOrderInvoiced(ctx context.Context, orderID int64, payload string) error
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
	// ClaimPayment moves a payable order to PAID and reports whether this
	// call performed the transition.
	ClaimPayment(ctx context.Context, orderID int64, chargeID string, payerTelegramID int64) (bool, error)
	MarkSubmitted(ctx context.Context, orderID int64, taskID string) error
	MarkFailed(ctx context.Context, orderID int64, reason string) error
}

// Store opens transactions over a database handle.
type Store struct {
	db *sqlx.DB
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Warn(ctx, "db", "tx.rollback", slog.String("status", "fail"), logger.Err(rbErr))
			}
		}
	}()

	if err = fn(&repo{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// repo implements Tx over any sqlx executor.
type repo struct {
	ext sqlx.ExtContext
}

func expectOne(res interface{ RowsAffected() (int64, error) }, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
