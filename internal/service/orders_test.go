package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/models"
)

// invoicedOrder seeds an INVOICED classic order and returns its payload.
func invoicedOrder(t *testing.T, store *fakeStore) (models.Order, string) {
	t.Helper()
	o := &models.Order{UserID: 1, ChatID: 100, Function: "generation", Mode: "classic", Prompt: "upbeat jazz piano", Model: "V4_5ALL", PriceStars: 6, Currency: "XTR"}
	require.NoError(t, store.CreateOrder(context.Background(), o))
	payload := "order:" + strconv.FormatInt(o.ID, 10)
	require.NoError(t, store.SetOrderInvoiced(context.Background(), o.ID, payload))
	return store.order(o.ID), payload
}

func TestPaymentHappyPath(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{taskID: "abc123"}
	refunder := &fakeRefunder{}
	rec := newCountingRecorder()
	svc := NewOrders(store, gen, refunder, rec, OrdersConfig{})
	order, payload := invoicedOrder(t, store)

	conf, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42, Amount: 6, Currency: "XTR"})
	require.NoError(t, err)
	require.Equal(t, Claimed, conf.Outcome)
	assert.Equal(t, models.OrderPaid, conf.Order.Status)

	res := svc.Fulfil(context.Background(), conf.Order)
	assert.Equal(t, "abc123", res.TaskID)
	assert.False(t, res.Failed)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.False(t, req.CustomMode)
	assert.Empty(t, req.Style)
	assert.Equal(t, "upbeat jazz piano", req.Prompt)
	assert.Equal(t, int64(42), req.UserID)
	assert.Equal(t, "ch-1", req.TelegramPaymentChargeID)

	got := store.order(order.ID)
	assert.Equal(t, models.OrderSubmitted, got.Status)
	require.NotNil(t, got.TaskID)
	assert.Equal(t, "abc123", *got.TaskID)
	assert.Empty(t, refunder.calls)
	assert.Equal(t, 1, rec.transitions["SUBMITTED"])
}

func TestDuplicatePaymentRunsGenerationOnce(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{taskID: "abc123"}
	svc := NewOrders(store, gen, &fakeRefunder{}, nil, OrdersConfig{})
	order, payload := invoicedOrder(t, store)
	p := Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42, Amount: 6, Currency: "XTR"}

	first, err := svc.Confirm(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Claimed, first.Outcome)
	svc.Fulfil(context.Background(), first.Order)

	second, err := svc.Confirm(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, second.Outcome)
	assert.Equal(t, models.OrderSubmitted, second.Order.Status)

	assert.Len(t, gen.requests, 1)
	assert.Equal(t, models.OrderSubmitted, store.order(order.ID).Status)
}

func TestGenerationFailureRefundsPayer(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: &generation.HTTPError{Op: "generate", StatusCode: 500}}
	refunder := &fakeRefunder{}
	svc := NewOrders(store, gen, refunder, nil, OrdersConfig{})
	order, payload := invoicedOrder(t, store)

	conf, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-9", PayerTelegramID: 77, Amount: 6, Currency: "XTR"})
	require.NoError(t, err)
	res := svc.Fulfil(context.Background(), conf.Order)

	assert.True(t, res.Failed)
	assert.True(t, res.Refunded)
	require.Len(t, refunder.calls, 1)
	assert.Equal(t, refundCall{payer: 77, chargeID: "ch-9"}, refunder.calls[0])

	got := store.order(order.ID)
	assert.Equal(t, models.OrderFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "HTTP_500", *got.FailureReason)
}

func TestGenerationTimeoutIsFailure(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	refunder := &fakeRefunder{}
	svc := NewOrders(store, gen, refunder, nil, OrdersConfig{})
	order, payload := invoicedOrder(t, store)

	conf, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42})
	require.NoError(t, err)
	res := svc.Fulfil(context.Background(), conf.Order)

	assert.True(t, res.Failed)
	assert.Len(t, refunder.calls, 1)
	assert.Equal(t, "timeout", *store.order(order.ID).FailureReason)
}

func TestRefundErrorIsReported(t *testing.T) {
	store := newFakeStore()
	svc := NewOrders(store, &fakeGenerator{err: errors.New("boom")}, &fakeRefunder{err: errors.New("telegram: 400")}, nil, OrdersConfig{})
	_, payload := invoicedOrder(t, store)

	conf, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42})
	require.NoError(t, err)
	res := svc.Fulfil(context.Background(), conf.Order)
	assert.True(t, res.Failed)
	assert.False(t, res.Refunded)
}

func TestConfirmMalformedAndMissing(t *testing.T) {
	store := newFakeStore()
	svc := NewOrders(store, &fakeGenerator{}, &fakeRefunder{}, nil, OrdersConfig{})

	for _, payload := range []string{"order:abc", "order:", ""} {
		conf, err := svc.Confirm(context.Background(), Payment{Payload: payload})
		require.NoError(t, err)
		assert.Equal(t, Malformed, conf.Outcome, payload)
	}

	conf, err := svc.Confirm(context.Background(), Payment{Payload: "order:999"})
	require.NoError(t, err)
	assert.Equal(t, NotFound, conf.Outcome)
}

func TestTaskStatusCountsCalls(t *testing.T) {
	rec := newCountingRecorder()
	gen := &fakeGenerator{status: generation.Status{Status: "PENDING"}}
	svc := NewOrders(newFakeStore(), gen, &fakeRefunder{}, rec, OrdersConfig{})
	st, err := svc.TaskStatus(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", st.TaskID)
	assert.Equal(t, 1, rec.calls["status:ok"])
}

func TestSecondChargeOnClosedOrderIsRefunded(t *testing.T) {
	for _, tc := range []struct {
		name   string
		genErr error
		status models.OrderStatus
	}{
		{name: "submitted", status: models.OrderSubmitted},
		{name: "failed", genErr: errors.New("boom"), status: models.OrderFailed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			gen := &fakeGenerator{taskID: "abc123", err: tc.genErr}
			refunder := &fakeRefunder{}
			svc := NewOrders(store, gen, refunder, nil, OrdersConfig{})
			order, payload := invoicedOrder(t, store)

			first, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42})
			require.NoError(t, err)
			svc.Fulfil(context.Background(), first.Order)
			refunder.calls = nil

			second, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-2", PayerTelegramID: 43})
			require.NoError(t, err)
			assert.Equal(t, Stray, second.Outcome)
			assert.True(t, second.Refunded)
			assert.Equal(t, []refundCall{{payer: 43, chargeID: "ch-2"}}, refunder.calls)
			assert.Len(t, gen.requests, 1)
			assert.Equal(t, tc.status, store.order(order.ID).Status)

			// A replay of the original charge is still only acknowledged.
			replay, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42})
			require.NoError(t, err)
			assert.Equal(t, Duplicate, replay.Outcome)
			assert.Len(t, refunder.calls, 1)
		})
	}
}

func TestStrayChargeRefundFailureIsReported(t *testing.T) {
	store := newFakeStore()
	refunder := &fakeRefunder{}
	svc := NewOrders(store, &fakeGenerator{taskID: "t"}, refunder, nil, OrdersConfig{})
	_, payload := invoicedOrder(t, store)

	first, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-1", PayerTelegramID: 42})
	require.NoError(t, err)
	svc.Fulfil(context.Background(), first.Order)

	refunder.err = errors.New("telegram: 400")
	second, err := svc.Confirm(context.Background(), Payment{Payload: payload, ChargeID: "ch-2", PayerTelegramID: 42})
	require.NoError(t, err)
	assert.Equal(t, Stray, second.Outcome)
	assert.False(t, second.Refunded)
}
