package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/models"
)

const orderColumns = `id, user_id, chat_id, function, mode, instrumental, style, prompt, model,
price_stars, currency, status, invoice_payload, payment_charge_id, payer_telegram_id,
task_id, failure_reason, created_at, paid_at, updated_at`

const insertOrderSQL = `
INSERT INTO orders (user_id, chat_id, function, mode, instrumental, style, prompt, model, price_stars, currency, status)
VALUES (:user_id, :chat_id, :function, :mode, :instrumental, :style, :prompt, :model, :price_stars, :currency, :status)
RETURNING id, created_at, updated_at`

// CreateOrder inserts o as a DRAFT and fills its id and timestamps.
func (r *repo) CreateOrder(ctx context.Context, o *models.Order) error {
	if _, err := conversation.ParseMode(o.Mode); err != nil || o.Mode == "" {
		return fmt.Errorf("create order: invalid mode %q", o.Mode)
	}
	if o.Currency == "" {
		o.Currency = models.CurrencyStars
	}
	o.Status = models.OrderDraft

	query, args, err := sqlx.Named(insertOrderSQL, o)
	if err != nil {
		return fmt.Errorf("create order: bind: %w", err)
	}
	query = r.ext.Rebind(query)
	if err := r.ext.QueryRowxContext(ctx, query, args...).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// SetOrderInvoiced stores the invoice payload and moves DRAFT to INVOICED.
func (r *repo) SetOrderInvoiced(ctx context.Context, orderID int64, payload string) error {
	res, err := r.ext.ExecContext(ctx, `
UPDATE orders
SET status = 'INVOICED', invoice_payload = $2, updated_at = now()
WHERE id = $1 AND status = 'DRAFT'`, orderID, payload)
	if err != nil {
		return fmt.Errorf("set order %d invoiced: %w", orderID, err)
	}
	return expectOne(res, fmt.Sprintf("set order %d invoiced", orderID))
}

// GetOrder loads one order and validates its enum columns.
func (r *repo) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var o models.Order
	err := sqlx.GetContext(ctx, r.ext, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if _, err := models.ParseOrderStatus(string(o.Status)); err != nil {
		return models.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if _, err := conversation.ParseMode(o.Mode); err != nil {
		return models.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return o, nil
}

// ClaimPayment is a conditional update, so two deliveries of the same
// payment race on the row lock and only one of them sees a changed row.
func (r *repo) ClaimPayment(ctx context.Context, orderID int64, chargeID string, payerTelegramID int64) (bool, error) {
	res, err := r.ext.ExecContext(ctx, `
UPDATE orders
SET status = 'PAID', payment_charge_id = $2, payer_telegram_id = $3, paid_at = now(), updated_at = now()
WHERE id = $1 AND status IN ('DRAFT', 'INVOICED')`, orderID, chargeID, payerTelegramID)
	if err != nil {
		return false, fmt.Errorf("claim payment for order %d: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim payment for order %d: rows affected: %w", orderID, err)
	}
	return n == 1, nil
}

// MarkSubmitted records the task id of a PAID order.
func (r *repo) MarkSubmitted(ctx context.Context, orderID int64, taskID string) error {
	res, err := r.ext.ExecContext(ctx, `
UPDATE orders
SET status = 'SUBMITTED', task_id = $2, updated_at = now()
WHERE id = $1 AND status = 'PAID'`, orderID, taskID)
	if err != nil {
		return fmt.Errorf("mark order %d submitted: %w", orderID, err)
	}
	return expectOne(res, fmt.Sprintf("mark order %d submitted", orderID))
}

// MarkFailed records why generation could not start for a PAID order.
func (r *repo) MarkFailed(ctx context.Context, orderID int64, reason string) error {
	res, err := r.ext.ExecContext(ctx, `
UPDATE orders
SET status = 'FAILED', failure_reason = $2, updated_at = now()
WHERE id = $1 AND status = 'PAID'`, orderID, reason)
	if err != nil {
		return fmt.Errorf("mark order %d failed: %w", orderID, err)
	}
	return expectOne(res, fmt.Sprintf("mark order %d failed", orderID))
}
