package helpers

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
)

// Sends are synchronous: a handler returns only after its replies are out.
func send(c tele.Context, action string, what any, opts *tele.SendOptions) error {
	var err error
	if opts != nil {
		err = c.Send(what, opts)
	} else {
		err = c.Send(what)
	}
	if err != nil {
		logger.Warn(BuildContext(c), "tg", "send",
			slog.String("status", "fail"),
			slog.String("action", action),
			logger.Err(err),
		)
	}
	return err
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return send(c, "send.text", text, sendOpts)
}

// SendWithMarkup sends plain text with a keyboard attached.
func SendWithMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

// SendHTML sends an HTML message with link previews disabled.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		ReplyMarkup:           rm,
		DisableWebPagePreview: true,
	})
}

// SendInvoice sends a Telegram invoice to the current chat.
func SendInvoice(c tele.Context, inv *tele.Invoice) error {
	return send(c, "send.invoice", inv, nil)
}

// ClearInlineKeyboard removes the inline keyboard from the message a callback
// came from. Failures are logged and ignored.
func ClearInlineKeyboard(c tele.Context) {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return
	}
	if _, err := c.Bot().EditReplyMarkup(cb.Message, nil); err != nil {
		logger.Debug(BuildContext(c), "tg", "edit.markup",
			slog.String("status", "skip"),
			logger.Err(err),
		)
	}
}
