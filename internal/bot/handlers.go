// Package bot renders the conversation flow and the payment lifecycle on
// Telegram. Handlers translate updates into service calls and service
// results into messages; they hold no per-user state.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	tg "github.com/m3rciful/musicbot/core/telegram"
	"github.com/m3rciful/musicbot/core/telegram/callbacks"
	"github.com/m3rciful/musicbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/musicbot/core/telegram/helpers"
	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/models"
	"github.com/m3rciful/musicbot/internal/service"
	"github.com/m3rciful/musicbot/internal/storage"
)

const component = "bot"

// Flow applies conversation events. *service.Flow implements it.
type Flow interface {
	Handle(ctx context.Context, tu models.TelegramUser, chatID int64, ev conversation.Event) (service.FlowResult, error)
}

// Orders drives paid orders. *service.Orders implements it.
type Orders interface {
	Confirm(ctx context.Context, p service.Payment) (service.Confirmation, error)
	Fulfil(ctx context.Context, order models.Order) service.Fulfilment
	TaskStatus(ctx context.Context, taskID string) (generation.Status, error)
	Lookup(ctx context.Context, orderID int64) (models.Order, error)
}

// InvoiceConfig describes the invoice shown to the user.
type InvoiceConfig struct {
	Title      string
	PriceStars int
	Currency   string
}

// Handlers holds the collaborators shared by every update.
type Handlers struct {
	flow    Flow
	orders  Orders
	invoice InvoiceConfig
}

// New builds the handler set.
func New(flow Flow, orders Orders, inv InvoiceConfig) *Handlers {
	if inv.Currency == "" {
		inv.Currency = models.CurrencyStars
	}
	return &Handlers{flow: flow, orders: orders, invoice: inv}
}

// Register binds commands and callbacks on reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Начать",
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     h.Reset,
		Description: "Сбросить текущий шаг",
		Aliases:     []string{resetButton},
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     h.Status,
		Description: "Статус генерации: /status <task_id>",
	})
	reg.RegisterCommand("/order", commands.Command{
		Handler:     h.Order,
		Description: "Заказ по id",
		AdminOnly:   true,
	})

	for _, ns := range []string{nsFunction, nsMode, nsInstrumental} {
		if err := reg.RegisterCallback(ns, h.Selection); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела, нажми /start"})
	})
	return nil
}

// Start begins a new flow.
func (h *Handlers) Start(c tele.Context) error {
	return h.apply(c, conversation.Start())
}

// Reset drops the flow, from the /reset command or the reply keyboard button.
func (h *Handlers) Reset(c tele.Context) error {
	return h.apply(c, conversation.Reset())
}

// Text feeds free text into the flow.
func (h *Handlers) Text(c tele.Context) error {
	return h.apply(c, conversation.Text(c.Text()))
}

// Unexpected treats non-text messages such as documents as empty input, which
// re-asks the current step or shows the main menu.
func (h *Handlers) Unexpected(c tele.Context) error {
	return h.apply(c, conversation.Text(""))
}

// Selection handles inline menu presses of every flow namespace.
func (h *Handlers) Selection(c tele.Context) error {
	ns, value := callbacks.ParseCallbackData(c.Callback())
	ev, ok := conversation.Selection(ns, value)
	if !ok {
		return nil
	}
	tghelpers.ClearInlineKeyboard(c)
	return h.apply(c, ev)
}

func (h *Handlers) apply(c tele.Context, ev conversation.Event) error {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}

	res, err := h.flow.Handle(ctx, telegramUser(sender), chatID, ev)
	if err != nil {
		logger.Error(ctx, component, "flow.handle",
			slog.String("status", "fail"),
			slog.String("event_kind", ev.Kind.String()),
			logger.Err(err),
		)
		_ = tghelpers.SendText(c, textFlowFailed)
		return err
	}
	return h.render(c, res)
}

func (h *Handlers) render(c tele.Context, res service.FlowResult) error {
	switch res.Reply {
	case conversation.ReplyStart, conversation.ReplyMainMenu:
		if err := tghelpers.SendWithMarkup(c, textIntro, startMenu()); err != nil {
			return err
		}
		return tghelpers.SendWithMarkup(c, textResetHint, mainMenu())
	case conversation.ReplyReset:
		if err := tghelpers.SendWithMarkup(c, textResetDone, mainMenu()); err != nil {
			return err
		}
		return tghelpers.SendWithMarkup(c, textChooseAction, startMenu())
	case conversation.ReplyEditUnavailable:
		return tghelpers.SendWithMarkup(c, textEditUnavailable, startMenu())
	case conversation.ReplyModeMenu:
		return tghelpers.SendWithMarkup(c, textModeMenu, modeMenu())
	case conversation.ReplyInstrumentalMenu:
		return tghelpers.SendWithMarkup(c, textInstrumentalMenu, instrumentalMenu())
	case conversation.ReplyAskStyle:
		return tghelpers.SendText(c, textAskStyle)
	case conversation.ReplyAskDescription:
		return tghelpers.SendText(c, textAskDescription)
	case conversation.ReplyAskLyrics:
		return tghelpers.SendText(c, textAskLyrics)
	case conversation.ReplyInvoice:
		if res.Order == nil {
			return fmt.Errorf("invoice reply without order")
		}
		if err := tghelpers.SendText(c, textSendingInvoice); err != nil {
			return err
		}
		return tghelpers.SendInvoice(c, h.buildInvoice(*res.Order))
	}
	return fmt.Errorf("unhandled reply %d", res.Reply)
}

func (h *Handlers) buildInvoice(o models.Order) *tele.Invoice {
	payload := ""
	if o.InvoicePayload != nil {
		payload = *o.InvoicePayload
	}
	return &tele.Invoice{
		Title:       h.invoice.Title,
		Description: invoiceDescription(o.PriceStars),
		Payload:     payload,
		Currency:    h.invoice.Currency,
		Prices:      []tele.Price{{Label: priceLabel(o.PriceStars), Amount: o.PriceStars}},
	}
}

// Checkout approves every pre-checkout query. All validation happened before
// the invoice was issued.
func (h *Handlers) Checkout(c tele.Context) error {
	return c.Accept()
}

// Payment confirms a successful payment and, for the first delivery of it,
// submits the order for generation.
func (h *Handlers) Payment(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}
	p := service.Payment{
		Payload:  msg.Payment.Payload,
		ChargeID: msg.Payment.TelegramChargeID,
		Amount:   msg.Payment.Total,
		Currency: msg.Payment.Currency,
	}
	if sender := c.Sender(); sender != nil {
		p.PayerTelegramID = sender.ID
	}

	conf, err := h.orders.Confirm(ctx, p)
	if err != nil {
		_ = tghelpers.SendText(c, textPaymentFailed)
		return err
	}

	switch conf.Outcome {
	case service.Malformed:
		return tghelpers.SendText(c, textPaymentMalformed)
	case service.NotFound:
		return tghelpers.SendText(c, textPaymentNotFound)
	case service.Duplicate:
		return tghelpers.SendText(c, textPaymentDuplicate)
	case service.Stray:
		if conf.Refunded {
			return tghelpers.SendText(c, textStrayRefunded)
		}
		return tghelpers.SendText(c, textStrayRefundFail)
	}

	_ = tghelpers.SendText(c, textPaymentClaimed)

	res := h.orders.Fulfil(ctx, conf.Order)
	switch {
	case !res.Failed:
		return tghelpers.SendHTML(c, launchedText(res.TaskID))
	case res.Refunded:
		return tghelpers.SendText(c, textRefunded)
	default:
		return tghelpers.SendText(c, textRefundFailed)
	}
}

// Status shows a generation task's status and tracks.
func (h *Handlers) Status(c tele.Context) error {
	taskID := commandArg(c)
	if taskID == "" {
		return tghelpers.SendHTML(c, textStatusUsage)
	}
	ctx := tghelpers.BuildContext(c)
	st, err := h.orders.TaskStatus(ctx, taskID)
	if err != nil {
		logger.Warn(ctx, component, "status",
			slog.String("status", "fail"),
			slog.String("task_id", logger.SanitizeLimit(taskID, 64)),
			logger.Err(err),
		)
		return tghelpers.SendText(c, textStatusError)
	}
	return tghelpers.SendHTML(c, renderStatus(st))
}

// Order prints an order for support. Admin only.
func (h *Handlers) Order(c tele.Context) error {
	id, err := strconv.ParseInt(commandArg(c), 10, 64)
	if err != nil || id <= 0 {
		return tghelpers.SendText(c, textOrderUsage)
	}
	ctx := logger.WithOrder(tghelpers.BuildContext(c), id)
	o, err := h.orders.Lookup(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, textOrderNotFound)
	}
	if err != nil {
		_ = tghelpers.SendText(c, textFlowFailed)
		return err
	}
	return tghelpers.SendText(c, describeOrder(o))
}

// RejectAdmin answers callers of admin-only commands.
func (h *Handlers) RejectAdmin(c tele.Context) error {
	return tghelpers.SendText(c, textAdminOnly)
}

// RateLimited answers throttled users.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
	}
	return nil
}

// Panicked answers a user whose update crashed a handler.
func (h *Handlers) Panicked(c tele.Context) error {
	return tghelpers.SendText(c, textPanic)
}

func describeOrder(o models.Order) string {
	lines := []string{
		fmt.Sprintf("Заказ #%d: %s", o.ID, o.Status),
		fmt.Sprintf("Режим: %s, инструментал: %t", o.Mode, o.Instrumental),
		fmt.Sprintf("Цена: %d %s", o.PriceStars, o.Currency),
	}
	if o.TaskID != nil {
		lines = append(lines, "task_id: "+*o.TaskID)
	}
	if o.FailureReason != nil {
		lines = append(lines, "Ошибка: "+*o.FailureReason)
	}
	return strings.Join(lines, "\n")
}

func commandArg(c tele.Context) string {
	if msg := c.Message(); msg != nil {
		if p := strings.TrimSpace(msg.Payload); p != "" {
			return p
		}
	}
	return strings.TrimSpace(strings.Join(c.Args(), " "))
}

func telegramUser(u *tele.User) models.TelegramUser {
	return models.TelegramUser{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}
