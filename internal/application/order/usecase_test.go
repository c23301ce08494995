package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	domcart "github.com/Zhima-Mochi/minishop-delivery/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/notification"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/keylock"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	validToken = "tttttttttttttttttttt"
	email      = "a@b.com"
)

type stubTokens struct{}

func (stubTokens) Verify(_ context.Context, id, e string) bool { return id == validToken && e == email }

func (stubTokens) Authenticate(_ context.Context, id string) (string, error) {
	if id != validToken {
		return "", apperr.New(apperr.ErrUnauthorized, "Missing required token in header, or token is invalid")
	}
	return email, nil
}

type mockProcessor struct{ mock.Mock }

func (m *mockProcessor) Capture(ctx context.Context, c payment.Charge) (*payment.Receipt, error) {
	args := m.Called(ctx, c)
	r, _ := args.Get(0).(*payment.Receipt)
	return r, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, msg notification.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type fixture struct {
	uc       *CreateOrderUseCase
	store    *memory.Store
	payments *mockProcessor
	notifier *mockNotifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := memory.NewStore(nil)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, document.Items, "margherita", catalog.Item{Name: "margherita", Description: "classic", Price: 10}))
	require.NoError(t, store.Create(ctx, document.Items, "pepperoni", catalog.Item{Name: "pepperoni", Description: "spicy", Price: 12.35}))

	f := &fixture{store: store, payments: &mockProcessor{}, notifier: &mockNotifier{}}
	f.uc = NewCreateOrderUseCase(store, stubTokens{}, keylock.New(), f.payments, f.notifier, opts, observability.Nop())
	return f
}

func (f *fixture) cart(t *testing.T, items ...string) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), document.Carts, email, domcart.Cart{Email: email, Items: items}))
}

func amountIs(v string) any {
	return mock.MatchedBy(func(c payment.Charge) bool { return c.Amount.Equal(decimal.RequireFromString(v)) })
}

func TestCheckoutSucceeds(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, mock.MatchedBy(func(c payment.Charge) bool {
		return c.Amount.Equal(decimal.NewFromInt(10)) && c.PaymentMethod == "pm_test" && c.Currency == "usd"
	})).Return(&payment.Receipt{ID: "pi_1", Status: payment.StatusSucceeded}, nil).Once()
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m notification.Message) bool {
		return m.To == email && m.Subject == "You have made a Pizza Order!"
	})).Return(nil).Once()

	res, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 10.0, res.Order.TotalAmount)
	assert.Equal(t, "pi_1", res.Receipt.ID)

	stored, err := document.Get[domain.Order](context.Background(), f.store, document.Orders, email)
	require.NoError(t, err)
	assert.Equal(t, res.Order, stored)
	f.payments.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestSecondCheckoutConflictsWithoutPaying(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, amountIs("10")).Return(&payment.Receipt{ID: "pi_1"}, nil).Once()
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	in := CreateOrderInput{Token: validToken, Email: email, PaymentMethod: "pm_test"}
	_, err := f.uc.Execute(context.Background(), in)
	require.NoError(t, err)

	_, err = f.uc.Execute(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "order already exists", err.Error())
	f.payments.AssertNumberOfCalls(t, "Capture", 1)
}

func TestConcurrentCheckoutCapturesOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita", "pepperoni")
	f.payments.On("Capture", mock.Anything, amountIs("22.35")).
		Run(func(mock.Arguments) { time.Sleep(5 * time.Millisecond) }).
		Return(&payment.Receipt{ID: "pi_1"}, nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, wins)
	f.payments.AssertNumberOfCalls(t, "Capture", 1)
}

func TestBadCartNeverReachesPayment(t *testing.T) {
	cases := map[string]func(t *testing.T, f *fixture){
		"missing cart": func(*testing.T, *fixture) {},
		"empty cart":   func(t *testing.T, f *fixture) { f.cart(t) },
		"deleted item": func(t *testing.T, f *fixture) {
			f.cart(t, "margherita", "pepperoni")
			require.NoError(t, f.store.Delete(context.Background(), document.Items, "pepperoni"))
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Options{})
			setup(t, f)

			_, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
			assert.ErrorIs(t, err, apperr.ErrInvalidState)
			f.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)

			keys, err := f.store.List(context.Background(), document.Orders)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestRejectedBeforeSideEffects(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")

	_, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: "bad", PaymentMethod: "pm_test"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, Email: "other@b.com", PaymentMethod: "pm_test"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestPaymentFailureWritesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, mock.Anything).Return(nil, errors.New("stripe: Your card was declined."))

	_, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
	assert.ErrorIs(t, err, apperr.ErrExternalService)
	assert.Contains(t, err.Error(), "Your card was declined.")

	var o domain.Order
	assert.ErrorIs(t, f.store.Read(context.Background(), document.Orders, email, &o), document.ErrNotFound)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestPaymentTimeout(t *testing.T) {
	f := newFixture(t, Options{PaymentTimeout: 20 * time.Millisecond})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded)

	_, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
	assert.ErrorIs(t, err, apperr.ErrExternalService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotificationFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, mock.Anything).Return(&payment.Receipt{ID: "pi_1"}, nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("sendgrid: status=500"))

	res, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
	require.NoError(t, err)
	assert.Equal(t, "The order email couldn't be sent to a@b.com", res.Warning)

	var o domain.Order
	assert.NoError(t, f.store.Read(context.Background(), document.Orders, email, &o))
}

func TestCartIsKeptAfterCheckout(t *testing.T) {
	f := newFixture(t, Options{})
	f.cart(t, "margherita")
	f.payments.On("Capture", mock.Anything, mock.Anything).Return(&payment.Receipt{ID: "pi_1"}, nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	_, err := f.uc.Execute(context.Background(), CreateOrderInput{Token: validToken, PaymentMethod: "pm_test"})
	require.NoError(t, err)

	var c domcart.Cart
	assert.NoError(t, f.store.Read(context.Background(), document.Carts, email, &c))
}

func TestGetOrder(t *testing.T) {
	store := memory.NewStore(nil)
	uc := NewGetOrderUseCase(store, stubTokens{}, nil)
	ctx := context.Background()

	_, err := uc.Execute(ctx, validToken)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	o := domain.New(email, []catalog.Item{{Name: "margherita", Price: 10}})
	require.NoError(t, store.Create(ctx, document.Orders, email, o))
	got, err := uc.Execute(ctx, validToken)
	require.NoError(t, err)
	assert.Equal(t, o, got)

	_, err = uc.Execute(ctx, "bad")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
