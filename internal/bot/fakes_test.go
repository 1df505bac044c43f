package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/models"
	"github.com/m3rciful/musicbot/internal/service"
)

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context

	upd    tele.Update
	sender *tele.User
	chat   *tele.Chat
	store  map[string]any

	sent      []any
	sendOpts  [][]any
	responses []*tele.CallbackResponse
	accepted  bool
}

func newTextContext(text string) *fakeContext {
	user := &tele.User{ID: 42, Username: "alice", FirstName: "Alice"}
	chat := &tele.Chat{ID: 4242, Type: tele.ChatPrivate}
	return &fakeContext{
		upd:    tele.Update{ID: 1, Message: &tele.Message{Text: text, Sender: user, Chat: chat}},
		sender: user,
		chat:   chat,
		store:  map[string]any{},
	}
}

func newCallbackContext(data string) *fakeContext {
	user := &tele.User{ID: 42}
	chat := &tele.Chat{ID: 4242}
	return &fakeContext{
		upd:    tele.Update{ID: 2, Callback: &tele.Callback{ID: "cb", Data: data, Sender: user}},
		sender: user,
		chat:   chat,
		store:  map[string]any{},
	}
}

func newPaymentContext(p *tele.Payment) *fakeContext {
	c := newTextContext("")
	c.upd.Message.Payment = p
	return c
}

func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Message() *tele.Message   { return f.upd.Message }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Text() string {
	if f.upd.Message == nil {
		return ""
	}
	return f.upd.Message.Text
}

func (f *fakeContext) Args() []string {
	if f.upd.Message == nil {
		return nil
	}
	return strings.Fields(f.upd.Message.Payload)
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	f.sendOpts = append(f.sendOpts, opts)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *fakeContext) Accept(errorMessage ...string) error {
	f.accepted = true
	return nil
}

func (f *fakeContext) texts() []string {
	var out []string
	for _, s := range f.sent {
		if t, ok := s.(string); ok {
			out = append(out, t)
		}
	}
	return out
}

type fakeFlow struct {
	events []conversation.Event
	users  []models.TelegramUser
	result service.FlowResult
	err    error
}

func (f *fakeFlow) Handle(_ context.Context, tu models.TelegramUser, _ int64, ev conversation.Event) (service.FlowResult, error) {
	f.events = append(f.events, ev)
	f.users = append(f.users, tu)
	return f.result, f.err
}

type fakeOrders struct {
	confirm    service.Confirmation
	confirmErr error
	fulfil     service.Fulfilment
	status     generation.Status
	statusErr  error
	order      models.Order
	lookupErr  error

	payments  []service.Payment
	fulfilled int
	taskIDs   []string
}

func (f *fakeOrders) Confirm(_ context.Context, p service.Payment) (service.Confirmation, error) {
	f.payments = append(f.payments, p)
	return f.confirm, f.confirmErr
}

func (f *fakeOrders) Fulfil(context.Context, models.Order) service.Fulfilment {
	f.fulfilled++
	return f.fulfil
}

func (f *fakeOrders) TaskStatus(_ context.Context, taskID string) (generation.Status, error) {
	f.taskIDs = append(f.taskIDs, taskID)
	return f.status, f.statusErr
}

func (f *fakeOrders) Lookup(context.Context, int64) (models.Order, error) {
	return f.order, f.lookupErr
}

type fakeRaw struct {
	method  string
	payload any
	err     error
}

func (f *fakeRaw) Raw(method string, payload interface{}) ([]byte, error) {
	f.method = method
	f.payload = payload
	return []byte(`{"ok":true,"result":true}`), f.err
}
