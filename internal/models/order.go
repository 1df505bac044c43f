package models

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderInvoiced  OrderStatus = "INVOICED"
	OrderPaid      OrderStatus = "PAID"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderFailed    OrderStatus = "FAILED"
)

// ParseOrderStatus validates a stored status value.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderDraft, OrderInvoiced, OrderPaid, OrderSubmitted, OrderFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Payable reports whether a payment may still be applied to the order.
func (s OrderStatus) Payable() bool {
	return s == OrderDraft || s == OrderInvoiced
}

// CurrencyStars is the Telegram Stars currency code.
const CurrencyStars = "XTR"

// Order is the committed snapshot of a finished conversation plus payment and
// fulfilment tracking.
type Order struct {
	ID           int64       `db:"id"`
	UserID       int64       `db:"user_id"`
	ChatID       int64       `db:"chat_id"`
	Function     string      `db:"function"`
	Mode         string      `db:"mode"`
	Instrumental bool        `db:"instrumental"`
	Style        string      `db:"style"`
	Prompt       string      `db:"prompt"`
	Model        string      `db:"model"`
	PriceStars   int         `db:"price_stars"`
	Currency     string      `db:"currency"`
	Status       OrderStatus `db:"status"`

	InvoicePayload  *string `db:"invoice_payload"`
	PaymentChargeID *string `db:"payment_charge_id"`
	PayerTelegramID *int64  `db:"payer_telegram_id"`
	TaskID          *string `db:"task_id"`
	FailureReason   *string `db:"failure_reason"`

	CreatedAt time.Time  `db:"created_at"`
	PaidAt    *time.Time `db:"paid_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// CustomMode reports whether the order was collected in custom mode.
func (o *Order) CustomMode() bool {
	return o.Mode == "custom"
}
