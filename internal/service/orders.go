package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/invoice"
	"github.com/m3rciful/musicbot/internal/models"
	"github.com/m3rciful/musicbot/internal/storage"
)

const ordersComponent = "orders"

// Payment is a successful payment event as reported by the payment rail.
type Payment struct {
	Payload         string
	ChargeID        string
	PayerTelegramID int64
	Amount          int
	Currency        string
}

// ConfirmOutcome classifies a payment confirmation.
type ConfirmOutcome int

const (
	// Claimed means this event moved the order to PAID.
	Claimed ConfirmOutcome = iota
	// Duplicate means the order was already paid; nothing must be repeated.
	Duplicate
	// Malformed means the payload does not encode an order id.
	Malformed
	// NotFound means the payload points at a missing order.
	NotFound
	// Stray means a second, different charge arrived for an order that is
	// no longer payable. The charge is refunded to its payer.
	Stray
)

func (o ConfirmOutcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case Duplicate:
		return "duplicate"
	case Malformed:
		return "malformed"
	case NotFound:
		return "not_found"
	case Stray:
		return "stray"
	}
	return "unknown"
}

// Confirmation is the result of Confirm.
type Confirmation struct {
	Outcome ConfirmOutcome
	Order   models.Order
	// Refunded reports whether a Stray charge was returned.
	Refunded bool
}

// Fulfilment is the result of Fulfil.
type Fulfilment struct {
	TaskID   string
	Failed   bool
	Refunded bool
}

// OrdersConfig tunes the order lifecycle.
type OrdersConfig struct {
	GenerateTimeout time.Duration
}

// Orders drives orders from payment to submission or refund.
type Orders struct {
	store    Store
	gen      Generator
	refunder Refunder
	metrics  Recorder
	timeout  time.Duration
}

// NewOrders builds an Orders service.
func NewOrders(store Store, gen Generator, refunder Refunder, rec Recorder, cfg OrdersConfig) *Orders {
	timeout := cfg.GenerateTimeout
	if timeout <= 0 {
		timeout = generation.DefaultTimeout
	}
	return &Orders{store: store, gen: gen, refunder: refunder, metrics: recorderOrNoop(rec), timeout: timeout}
}

// Confirm matches a payment to its order and claims it. Only the Claimed
// outcome may be followed by Fulfil.
func (s *Orders) Confirm(ctx context.Context, p Payment) (Confirmation, error) {
	orderID, err := invoice.Parse(p.Payload)
	if err != nil {
		logger.Warn(ctx, ordersComponent, "payment.confirm",
			slog.String("status", "rejected"),
			slog.String("cause", "malformed_payload"),
			slog.String("payload", logger.SanitizeLimit(p.Payload, 64)),
		)
		return Confirmation{Outcome: Malformed}, nil
	}
	ctx = logger.WithOrder(ctx, orderID)

	var res Confirmation
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, storage.ErrNotFound) {
			res.Outcome = NotFound
			return nil
		}
		if err != nil {
			return err
		}
		claimed, err := tx.ClaimPayment(ctx, orderID, p.ChargeID, p.PayerTelegramID)
		if err != nil {
			return err
		}
		if !claimed {
			res = Confirmation{Outcome: Duplicate, Order: order}
			if !sameCharge(order, p.ChargeID) {
				res.Outcome = Stray
			}
			return nil
		}
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		res = Confirmation{Outcome: Claimed, Order: order}
		return nil
	})
	if err != nil {
		logger.Error(ctx, ordersComponent, "payment.confirm", slog.String("status", "fail"), logger.Err(err))
		return Confirmation{}, err
	}

	status := "ok"
	switch res.Outcome {
	case Claimed:
		s.metrics.OrderTransition(string(models.OrderPaid))
		if p.Amount != res.Order.PriceStars || !strings.EqualFold(p.Currency, res.Order.Currency) {
			logger.Warn(ctx, ordersComponent, "payment.mismatch",
				slog.Int("amount", p.Amount),
				slog.String("currency", p.Currency),
				slog.Int("price_stars", res.Order.PriceStars),
			)
		}
	case Duplicate:
		status = "duplicate"
	case NotFound:
		status = "fail"
	case Stray:
		status = "rejected"
		res.Refunded = s.refundCharge(ctx, p.PayerTelegramID, p.ChargeID, errStrayCharge)
	}
	logger.Info(ctx, ordersComponent, "payment.confirm",
		slog.String("status", status),
		slog.String("outcome", res.Outcome.String()),
		slog.String("order_status", string(res.Order.Status)),
	)
	return res, nil
}

// Fulfil submits a freshly paid order to the generation API. Any failure,
// including a timeout, marks the order FAILED and refunds the payer recorded
// at the PAID transition.
func (s *Orders) Fulfil(ctx context.Context, order models.Order) Fulfilment {
	ctx = logger.WithOrder(ctx, order.ID)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	taskID, genErr := s.gen.Generate(genCtx, requestFor(order))
	cancel()

	if genErr == nil {
		s.metrics.GenerationCall("generate", "ok")
		err := s.store.InTx(ctx, func(tx storage.Tx) error {
			return tx.MarkSubmitted(ctx, order.ID, taskID)
		})
		if err != nil {
			// The job is running upstream, so the user still gets the task id.
			logger.Error(ctx, ordersComponent, "order.submitted",
				slog.String("status", "fail"),
				slog.String("task_id", taskID),
				logger.Err(err),
			)
		} else {
			s.metrics.OrderTransition(string(models.OrderSubmitted))
			logger.Info(ctx, ordersComponent, "order.submitted",
				slog.String("status", "ok"),
				slog.String("task_id", taskID),
			)
		}
		return Fulfilment{TaskID: taskID}
	}

	s.metrics.GenerationCall("generate", "fail")
	reason := failureReason(genErr)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		return tx.MarkFailed(ctx, order.ID, reason)
	})
	if err != nil {
		logger.Error(ctx, ordersComponent, "order.failed", slog.String("status", "fail"), logger.Err(err))
	} else {
		s.metrics.OrderTransition(string(models.OrderFailed))
	}

	res := Fulfilment{Failed: true}
	res.Refunded = s.refund(ctx, order, genErr)
	return res
}

var errStrayCharge = errors.New("order no longer payable")

// sameCharge reports whether chargeID is the charge that paid order.
func sameCharge(order models.Order, chargeID string) bool {
	return order.PaymentChargeID != nil && *order.PaymentChargeID == chargeID
}

func (s *Orders) refund(ctx context.Context, order models.Order, cause error) bool {
	if order.PayerTelegramID == nil || order.PaymentChargeID == nil {
		logger.Error(ctx, ordersComponent, "order.refund",
			slog.String("status", "skip"),
			slog.String("cause", "missing_payment_identity"),
		)
		return false
	}
	return s.refundCharge(ctx, *order.PayerTelegramID, *order.PaymentChargeID, cause)
}

// refundCharge returns one charge to its payer.
func (s *Orders) refundCharge(ctx context.Context, payer int64, chargeID string, cause error) bool {
	if payer == 0 || chargeID == "" {
		logger.Error(ctx, ordersComponent, "order.refund",
			slog.String("status", "skip"),
			slog.String("cause", "missing_payment_identity"),
		)
		return false
	}
	err := s.refunder.Refund(ctx, payer, chargeID)
	if err != nil {
		logger.Error(ctx, ordersComponent, "order.refund",
			slog.String("status", "fail"),
			slog.String("outcome", "fail"),
			slog.String("cause", logger.SanitizeLimit(cause.Error(), 256)),
			logger.Err(err),
		)
		return false
	}
	logger.Info(ctx, ordersComponent, "order.refund",
		slog.String("status", "ok"),
		slog.String("outcome", "refunded"),
		slog.String("cause", logger.SanitizeLimit(cause.Error(), 256)),
	)
	return true
}

func requestFor(o models.Order) generation.Request {
	req := generation.Request{
		Prompt:       o.Prompt,
		CustomMode:   o.CustomMode(),
		Title:        generation.DefaultTitle,
		Instrumental: o.Instrumental,
		Model:        o.Model,
		ChatID:       o.ChatID,
	}
	if req.CustomMode {
		req.Style = o.Style
	}
	if o.PayerTelegramID != nil {
		req.UserID = *o.PayerTelegramID
	}
	if o.PaymentChargeID != nil {
		req.TelegramPaymentChargeID = *o.PaymentChargeID
	}
	return req
}

func failureReason(err error) string {
	var httpErr *generation.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, generation.ErrValidation):
		return "validation"
	case errors.As(err, &httpErr):
		return httpErr.Code()
	}
	return logger.SanitizeLimit(err.Error(), 200)
}

// TaskStatus looks up a generation task.
func (s *Orders) TaskStatus(ctx context.Context, taskID string) (generation.Status, error) {
	st, err := s.gen.Status(ctx, taskID)
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	s.metrics.GenerationCall("status", outcome)
	return st, err
}

// Lookup loads an order for support commands.
func (s *Orders) Lookup(ctx context.Context, orderID int64) (models.Order, error) {
	var o models.Order
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	return o, err
}
