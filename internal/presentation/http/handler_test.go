package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-delivery/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/minishop-delivery/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-delivery/internal/application/order"
	apptoken "github.com/Zhima-Mochi/minishop-delivery/internal/application/token"
	appuser "github.com/Zhima-Mochi/minishop-delivery/internal/application/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/hash"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/keylock"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

type server struct {
	t        *testing.T
	srv      *httptest.Server
	store    *memory.Store
	payments *mockProcessor
	notifier *mockNotifier
}

func newServer(t *testing.T) *server {
	t.Helper()
	tel := observability.Nop()
	store := memory.NewStore(tel)
	locks := keylock.New()
	hasher := hash.NewHMAC("test-secret")

	bus := outbox.NewBus(tel)
	bus.Start(context.Background())
	t.Cleanup(func() { bus.Stop(context.Background()) })

	tokens := apptoken.NewService(store, hasher, id.NewGenerator(20), time.Hour, tel)
	catalog := appcatalog.NewService(store, locks, tel)
	carts := appcart.NewService(store, catalog, tel)
	users := appuser.NewService(store, hasher, locks, bus, tel)
	appuser.NewCleanupWorker(bus, tokens, carts, tel).Start()

	s := &server{t: t, store: store, payments: &mockProcessor{}, notifier: &mockNotifier{}}
	h := NewHandler(Services{
		Users:   users,
		Tokens:  tokens,
		Catalog: catalog,
		Carts:   carts,
		CreateOrder: apporder.NewCreateOrderUseCase(store, tokens, locks, s.payments, s.notifier, apporder.Options{
			PaymentTimeout: time.Second,
			NotifyTimeout:  time.Second,
			Currency:       "usd",
		}, tel),
		GetOrder: apporder.NewGetOrderUseCase(store, tokens, tel),
	}, tel)
	s.srv = httptest.NewServer(h.Router())
	t.Cleanup(s.srv.Close)
	return s
}

func (s *server) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	status, raw := s.doRaw(method, path, token, body)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (s *server) doRaw(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		payload = string(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(payload))
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set(headerToken, token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		raw = nil
	}
	return resp.StatusCode, raw
}

// signup creates a user and returns a fresh token id for it.
func (s *server) signup(email string) string {
	s.t.Helper()
	status, _ := s.do(http.MethodPost, "/users", "", map[string]any{
		"name": "Ann", "email": email, "address": "1 Main St", "password": "pw",
	})
	require.Equal(s.t, http.StatusOK, status)
	status, tok := s.do(http.MethodPost, "/tokens", "", map[string]any{"email": email, "password": "pw"})
	require.Equal(s.t, http.StatusOK, status)
	return tok["id"].(string)
}

func TestPing(t *testing.T) {
	s := newServer(t)
	status, body := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t)
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-1")
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get(headerRequestID))

	resp, err = s.srv.Client().Get(s.srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestUnknownRoutes(t *testing.T) {
	s := newServer(t)
	status, _ := s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodPatch, "/users", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestUserLifecycle(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")

	status, body := s.do(http.MethodPost, "/users", "", map[string]any{
		"name": "Ann", "email": "ann@example.com", "address": "x", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A user with that email already exists", body["Error"])

	status, body = s.do(http.MethodGet, "/users?email=ann@example.com", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ann", body["name"])
	assert.NotContains(t, body, "hashedPassword")
	assert.NotContains(t, body, "password")

	status, _ = s.do(http.MethodGet, "/users?email=bob@example.com", tok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(http.MethodGet, "/users?email=ann@example.com", "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(http.MethodPut, "/users", tok, map[string]any{"email": "ann@example.com", "address": "2 Side St"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2 Side St", body["address"])

	status, body = s.do(http.MethodPut, "/users", tok, map[string]any{"email": "ann@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing fields to update", body["Error"])

	status, _ = s.do(http.MethodDelete, "/users?email=ann@example.com", tok, nil)
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		ids, err := s.store.List(context.Background(), document.Tokens)
		return err == nil && len(ids) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTokenLifecycle(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")

	status, body := s.do(http.MethodPost, "/tokens", "", map[string]any{"email": "ann@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password did not match the specified user's stored password", body["Error"])

	status, body = s.do(http.MethodGet, "/tokens?id="+tok, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ann@example.com", body["email"])
	expires := body["expires"].(float64)

	status, body = s.do(http.MethodPut, "/tokens", "", map[string]any{"id": tok, "extend": true})
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, body["expires"].(float64), expires)

	status, _ = s.do(http.MethodPut, "/tokens", "", map[string]any{"id": tok, "extend": false})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodDelete, "/tokens?id="+tok, "", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/tokens?id="+tok, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodDelete, "/tokens?id="+tok, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestItemsRequireToken(t *testing.T) {
	s := newServer(t)
	status, body := s.do(http.MethodGet, "/items", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Missing required token in header, or token is invalid", body["Error"])
}

func TestItemLifecycle(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")

	status, raw := s.doRaw(http.MethodGet, "/items", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))

	status, _ = s.do(http.MethodPost, "/items", tok, map[string]any{"name": "margherita", "description": "classic", "price": 10})
	require.Equal(t, http.StatusOK, status)
	status, body := s.do(http.MethodPost, "/items", tok, map[string]any{"name": "margherita", "description": "again", "price": 11})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "An item with that name already exists", body["Error"])
	status, _ = s.do(http.MethodPost, "/items", tok, map[string]any{"name": "free", "description": "x", "price": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodPost, "/items", tok, map[string]any{"name": strings.Repeat("pizza ", 33), "description": "x", "price": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodPut, "/items", tok, map[string]any{"name": "margherita", "price": 9.5})
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 9.5, body["price"], 1e-9)
	assert.Equal(t, "classic", body["description"])

	status, raw = s.doRaw(http.MethodGet, "/items", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"name":"margherita","description":"classic","price":9.5}]`, string(raw))

	status, _ = s.do(http.MethodGet, "/items?name=calzone", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodPut, "/items", tok, map[string]any{"name": "calzone", "price": 3})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodDelete, "/items?name=calzone", tok, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodDelete, "/items?name=margherita", tok, nil)
	assert.Equal(t, http.StatusOK, status)
}

func (s *server) seed(tok string) {
	s.t.Helper()
	for _, it := range []map[string]any{
		{"name": "margherita", "description": "classic", "price": 10},
		{"name": "pepperoni", "description": "spicy", "price": 12.5},
	} {
		status, _ := s.do(http.MethodPost, "/items", tok, it)
		require.Equal(s.t, http.StatusOK, status)
	}
}

func TestCartLifecycle(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")
	s.seed(tok)

	status, body := s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita", "calzone", "stromboli"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "These items do not exist: calzone,stromboli", body["Error"])

	status, _ = s.do(http.MethodGet, "/carts", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodPut, "/carts", tok, map[string]any{"items": []string{"margherita"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita"}})
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPut, "/carts", tok, map[string]any{"items": []string{"margherita", "pepperoni"}})
	require.Equal(t, http.StatusOK, status)
	status, body = s.do(http.MethodGet, "/carts", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"margherita", "pepperoni"}, body["items"])

	status, _ = s.do(http.MethodDelete, "/carts", tok, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodDelete, "/carts", tok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCheckout(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")
	s.seed(tok)

	status, body := s.do(http.MethodPost, "/orders", tok, map[string]any{"paymentMethod": "pm_card_visa"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A cart for the current user ann@example.com doesn't exist or is empty", body["Error"])

	status, _ = s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita", "pepperoni"}})
	require.Equal(t, http.StatusOK, status)

	s.payments.On("Capture", mock.Anything, mock.Anything).
		Return(&payment.Receipt{ID: "pi_1", Status: payment.StatusSucceeded}, nil).Once()
	s.notifier.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	status, body = s.do(http.MethodPost, "/orders", tok, map[string]any{"paymentMethod": "pm_card_visa"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ann@example.com", body["email"])
	assert.InDelta(t, 22.5, body["totalAmount"], 1e-9)
	assert.NotContains(t, body, "warning")

	status, body = s.do(http.MethodGet, "/orders", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 2)

	status, body = s.do(http.MethodPost, "/orders", tok, map[string]any{"paymentMethod": "pm_card_visa"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "order already exists", body["Error"])

	s.payments.AssertNumberOfCalls(t, "Capture", 1)
	s.notifier.AssertExpectations(t)
}

func TestCheckoutNotificationWarning(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")
	s.seed(tok)
	status, _ := s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita"}})
	require.Equal(t, http.StatusOK, status)

	s.payments.On("Capture", mock.Anything, mock.Anything).
		Return(&payment.Receipt{ID: "pi_1", Status: payment.StatusSucceeded}, nil).Once()
	s.notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("mail down")).Once()

	status, body := s.do(http.MethodPost, "/orders", tok, map[string]any{"paymentMethod": "pm_card_visa"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "The order email couldn't be sent to ann@example.com", body["warning"])
}

func TestCheckoutPaymentFailure(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")
	s.seed(tok)
	status, _ := s.do(http.MethodPost, "/carts", tok, map[string]any{"items": []string{"margherita"}})
	require.Equal(t, http.StatusOK, status)

	s.payments.On("Capture", mock.Anything, mock.Anything).Return(nil, errors.New("card declined")).Once()

	status, body := s.do(http.MethodPost, "/orders", tok, map[string]any{"paymentMethod": "pm_card_visa"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["Error"], "The payment couldn't be created for ann@example.com")

	status, _ = s.do(http.MethodGet, "/orders", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	s.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCheckoutForeignEmailRejected(t *testing.T) {
	s := newServer(t)
	tok := s.signup("ann@example.com")

	status, _ := s.do(http.MethodPost, "/orders", tok, map[string]any{"email": "bob@example.com", "paymentMethod": "pm_card_visa"})
	assert.Equal(t, http.StatusForbidden, status)
	s.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestOrderMutationsNotImplemented(t *testing.T) {
	s := newServer(t)
	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		status, body := s.do(method, "/orders", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Method not implemented", body["Error"])
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom"), http.StatusNotFound))
}
