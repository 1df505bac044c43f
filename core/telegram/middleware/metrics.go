package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/metrics"
)

const (
	metricsKey = "metrics"
	statsKey   = "send_stats"
)

// sendStats counts what a handler sent for its summary line.
type sendStats struct {
	messages int
	keyboard bool
}

// countingContext wraps tele.Context and records successful sends.
type countingContext struct {
	tele.Context
	stats *sendStats
}

func (c countingContext) record(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	c.stats.messages++
	if hasKeyboard(opts) {
		c.stats.keyboard = true
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send.
func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Send(what, opts...), opts)
}

// Reply proxies tele.Context.Reply.
func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Reply(what, opts...), opts)
}

// Edit proxies tele.Context.Edit.
func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Edit(what, opts...), opts)
}

// EditOrSend proxies tele.Context.EditOrSend.
func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.EditOrSend(what, opts...), opts)
}

// EditOrReply proxies tele.Context.EditOrReply.
func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts messages sent while handling an update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, wrapped := c.(countingContext); wrapped {
			return next(c)
		}
		stats := &sendStats{}
		c.Set(statsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// InstrumentMiddleware counts updates by kind and exposes m to the router's
// handler summaries.
func InstrumentMiddleware(m *metrics.Metrics) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Get(metricsKey) == nil {
				m.IncUpdate(UpdateKind(c.Update()))
				c.Set(metricsKey, m)
			}
			return next(c)
		}
	}
}

// MetricsFrom returns the collectors stored by InstrumentMiddleware, or nil.
func MetricsFrom(c tele.Context) *metrics.Metrics {
	m, _ := c.Get(metricsKey).(*metrics.Metrics)
	return m
}

// GetCounters reports how many messages were sent for the update and
// whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(statsKey).(*sendStats)
	if !ok || stats == nil {
		return 0, false
	}
	return stats.messages, stats.keyboard
}
