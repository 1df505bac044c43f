package middleware

import tele "gopkg.in/telebot.v4"

// Update kinds used by rate limit exclusions and metrics labels.
const (
	KindCallback = "callback"
	KindMessage  = "message"
	KindPayment  = "payment"
	KindOther    = "other"
)

// UpdateKind classifies an update. Pre-checkout queries and successful
// payment messages are both reported as payments.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.PreCheckoutQuery != nil:
		return KindPayment
	case upd.Message != nil && upd.Message.Payment != nil:
		return KindPayment
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	}
	return KindOther
}
