package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/invoice"
	"github.com/m3rciful/musicbot/internal/models"
	"github.com/m3rciful/musicbot/internal/storage"
)

const flowComponent = "flow"

// Billing is the pricing applied to new orders.
type Billing struct {
	PriceStars int
	Currency   string
	Model      string
}

// FlowResult tells the transport what to render.
type FlowResult struct {
	Reply conversation.Reply
	// Order is set when the flow completed; it is already INVOICED and its
	// payload is stored.
	Order *models.Order
}

// Flow applies chat events to the persisted conversation state.
type Flow struct {
	store   Store
	billing Billing
	metrics Recorder
}

// NewFlow builds a Flow.
func NewFlow(store Store, billing Billing, rec Recorder) *Flow {
	if billing.Currency == "" {
		billing.Currency = models.CurrencyStars
	}
	return &Flow{store: store, billing: billing, metrics: recorderOrNoop(rec)}
}

// Handle loads the user's state, applies ev and persists the outcome in one
// transaction. A completed flow creates and invoices the order in the same
// transaction that deletes the state.
func (f *Flow) Handle(ctx context.Context, tu models.TelegramUser, chatID int64, ev conversation.Event) (FlowResult, error) {
	var res FlowResult
	err := f.store.InTx(ctx, func(tx storage.Tx) error {
		user, err := tx.UpsertUser(ctx, tu)
		if err != nil {
			return err
		}

		cur, err := tx.LoadState(ctx, user.ID)
		if err != nil {
			if !isUnknownValue(err) {
				return err
			}
			logger.Warn(ctx, flowComponent, "state.discard",
				slog.String("status", "skip"),
				slog.String("cause", "unknown_value"),
				logger.Err(err),
			)
			if err := tx.DeleteState(ctx, user.ID); err != nil {
				return err
			}
			cur = nil
		}

		out := conversation.Apply(cur, ev)
		res.Reply = out.Reply

		switch out.Action {
		case conversation.Save:
			if err := tx.SaveState(ctx, user.ID, out.State); err != nil {
				return err
			}
		case conversation.Delete:
			if err := tx.DeleteState(ctx, user.ID); err != nil {
				return err
			}
		}

		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("event_kind", ev.Kind.String()),
			slog.String("step", stepName(cur)),
		}
		if out.Action == conversation.Save {
			attrs = append(attrs, slog.String("next_step", string(out.State.Step)))
		}
		logger.Debug(ctx, flowComponent, "state.apply", attrs...)

		if out.Draft == nil {
			return nil
		}
		order, err := f.createInvoicedOrder(ctx, tx, user, chatID, *out.Draft)
		if err != nil {
			return err
		}
		res.Order = order
		return nil
	})
	if err != nil {
		return FlowResult{}, err
	}
	if res.Order != nil {
		f.metrics.OrderTransition(string(models.OrderDraft))
		f.metrics.OrderTransition(string(models.OrderInvoiced))
		logger.Info(logger.WithOrder(ctx, res.Order.ID), flowComponent, "order.invoiced",
			slog.String("status", "ok"),
			slog.String("mode", res.Order.Mode),
			slog.Bool("instrumental", res.Order.Instrumental),
			slog.Int("price_stars", res.Order.PriceStars),
		)
	}
	return res, nil
}

// The payload is stored before the invoice is sent, so a payment for it can
// always be resolved.
func (f *Flow) createInvoicedOrder(ctx context.Context, tx storage.Tx, user models.User, chatID int64, d conversation.Draft) (*models.Order, error) {
	o := &models.Order{
		UserID:       user.ID,
		ChatID:       chatID,
		Function:     string(d.Function),
		Mode:         string(d.Mode),
		Instrumental: d.Instrumental,
		Style:        d.Style,
		Prompt:       d.Prompt,
		Model:        f.billing.Model,
		PriceStars:   f.billing.PriceStars,
		Currency:     f.billing.Currency,
	}
	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	payload, err := invoice.Mint(o.ID)
	if err != nil {
		return nil, fmt.Errorf("mint invoice payload: %w", err)
	}
	if err := tx.SetOrderInvoiced(ctx, o.ID, payload); err != nil {
		return nil, err
	}
	o.Status = models.OrderInvoiced
	o.InvoicePayload = &payload
	return o, nil
}

func isUnknownValue(err error) bool {
	return errors.Is(err, conversation.ErrUnknownStep) ||
		errors.Is(err, conversation.ErrUnknownMode) ||
		errors.Is(err, conversation.ErrUnknownFunction) ||
		errors.Is(err, conversation.ErrInconsistent)
}

func stepName(st *conversation.State) string {
	if st.Idle() {
		return "idle"
	}
	return string(st.Step)
}
