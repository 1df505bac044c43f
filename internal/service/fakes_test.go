package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m3rciful/musicbot/internal/conversation"
	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/models"
	"github.com/m3rciful/musicbot/internal/storage"
)

// fakeStore keeps rows in maps. Transactions are not isolated.
type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]models.User
	states  map[int64]conversation.State
	orders  map[int64]*models.Order
	nextID  int64
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[int64]models.User{},
		states: map[int64]conversation.State{},
		orders: map[int64]*models.Order{},
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (s *fakeStore) UpsertUser(_ context.Context, u models.TelegramUser) (models.User, error) {
	for _, existing := range s.users {
		if existing.TelegramUserID == u.ID {
			name := u.Username
			existing.Username = &name
			s.users[existing.ID] = existing
			return existing, nil
		}
	}
	s.nextID++
	name := u.Username
	user := models.User{ID: s.nextID, TelegramUserID: u.ID, Username: &name, CreatedAt: time.Now()}
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeStore) LoadState(_ context.Context, userID int64) (*conversation.State, error) {
	if s.loadErr != nil {
		err := s.loadErr
		s.loadErr = nil
		return nil, err
	}
	st, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *fakeStore) SaveState(_ context.Context, userID int64, st conversation.State) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.states[userID] = st
	return nil
}

func (s *fakeStore) DeleteState(_ context.Context, userID int64) error {
	delete(s.states, userID)
	return nil
}

func (s *fakeStore) CreateOrder(_ context.Context, o *models.Order) error {
	s.nextID++
	o.ID = s.nextID
	o.Status = models.OrderDraft
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeStore) SetOrderInvoiced(_ context.Context, id int64, payload string) error {
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderDraft {
		return storage.ErrNotFound
	}
	o.Status = models.OrderInvoiced
	o.InvoicePayload = &payload
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, id int64) (models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return *o, nil
}

func (s *fakeStore) ClaimPayment(_ context.Context, id int64, chargeID string, payer int64) (bool, error) {
	o, ok := s.orders[id]
	if !ok || !o.Status.Payable() {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderPaid
	o.PaymentChargeID = &chargeID
	o.PayerTelegramID = &payer
	o.PaidAt = &now
	return true, nil
}

func (s *fakeStore) MarkSubmitted(_ context.Context, id int64, taskID string) error {
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderPaid {
		return storage.ErrNotFound
	}
	o.Status = models.OrderSubmitted
	o.TaskID = &taskID
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, reason string) error {
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderPaid {
		return storage.ErrNotFound
	}
	o.Status = models.OrderFailed
	o.FailureReason = &reason
	return nil
}

func (s *fakeStore) order(id int64) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

type fakeGenerator struct {
	mu       sync.Mutex
	taskID   string
	err      error
	requests []generation.Request
	status   generation.Status
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.taskID, g.err
}

func (g *fakeGenerator) Status(_ context.Context, taskID string) (generation.Status, error) {
	st := g.status
	st.TaskID = taskID
	return st, g.err
}

type refundCall struct {
	payer    int64
	chargeID string
}

type fakeRefunder struct {
	calls []refundCall
	err   error
}

func (r *fakeRefunder) Refund(_ context.Context, payer int64, chargeID string) error {
	r.calls = append(r.calls, refundCall{payer: payer, chargeID: chargeID})
	return r.err
}

type countingRecorder struct {
	transitions map[string]int
	calls       map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{transitions: map[string]int{}, calls: map[string]int{}}
}

func (r *countingRecorder) OrderTransition(status string) { r.transitions[status]++ }

func (r *countingRecorder) GenerationCall(op, outcome string) { r.calls[op+":"+outcome]++ }
