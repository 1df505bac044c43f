package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/musicbot/core/logger"
)

// RawCaller issues Bot API methods that have no typed wrapper.
// *tele.Bot implements it.
type RawCaller interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// ErrNotBound is returned by StarsRefunder before Bind.
var ErrNotBound = errors.New("refunder: bot not bound")

// StarsRefunder returns Telegram Stars payments through refundStarPayment.
// The bot only exists once the runtime starts, so it is bound late.
type StarsRefunder struct {
	mu  sync.RWMutex
	api RawCaller
}

// Bind sets the bot used for refunds.
func (r *StarsRefunder) Bind(api RawCaller) {
	r.mu.Lock()
	r.api = api
	r.mu.Unlock()
}

// Refund returns the charge to the user who paid it.
func (r *StarsRefunder) Refund(ctx context.Context, payerTelegramID int64, chargeID string) error {
	r.mu.RLock()
	api := r.api
	r.mu.RUnlock()
	if api == nil {
		return ErrNotBound
	}
	_, err := api.Raw("refundStarPayment", map[string]any{
		"user_id":                    payerTelegramID,
		"telegram_payment_charge_id": chargeID,
	})
	if err != nil {
		return fmt.Errorf("refundStarPayment: %w", err)
	}
	logger.Debug(ctx, "tg", "refund", slog.String("status", "ok"), slog.Int64("payer_id", payerTelegramID))
	return nil
}
