package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	domcart "github.com/Zhima-Mochi/minishop-delivery/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/notification"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	spanPrefix         = "UC."

	paymentPeer          = "payment"
	paymentEndpoint      = "capture"
	notificationPeer     = "notification"
	notificationEndpoint = "send"

	DefaultPaymentTimeout = 10 * time.Second
	DefaultNotifyTimeout  = 10 * time.Second
	DefaultCurrency       = "usd"

	msgOrderExists = "order already exists"
)

type Options struct {
	PaymentTimeout time.Duration
	NotifyTimeout  time.Duration
	Currency       string
}

// CreateOrderUseCase runs checkout: it turns the caller's cart into a paid,
// persisted order and emails a confirmation.
type CreateOrderUseCase struct {
	store    document.Store
	tokens   TokenVerifier
	locks    application.KeyLocker
	payments payment.Processor
	notifier notification.Notifier
	opts     Options
	tel      observability.Observability

	// Base logger with fixed fields prebound.
	log observability.Logger
	// RED metrics.
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewCreateOrderUseCase(
	store document.Store,
	tokens TokenVerifier,
	locks application.KeyLocker,
	payments payment.Processor,
	notifier notification.Notifier,
	opts Options,
	tel observability.Observability,
) *CreateOrderUseCase {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = DefaultPaymentTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = DefaultNotifyTimeout
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}

	metricsProvider := observability.MetricsOf(tel)
	return &CreateOrderUseCase{
		store:        store,
		tokens:       tokens,
		locks:        locks,
		payments:     payments,
		notifier:     notifier,
		opts:         opts,
		tel:          tel,
		log:          observability.LoggerOf(tel).With(observability.F("service", orderService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

type CreateOrderInput struct {
	Token string
	// Email is the identity the caller claims. Empty means the token's own.
	Email         string
	PaymentMethod string
}

type CreateOrderResult struct {
	Order   *domain.Order
	Receipt *payment.Receipt
	// Warning is set when the order is stored but the confirmation failed.
	Warning string
}

// Execute runs checkout while holding the per-email lock, so at most one
// checkout per user reaches the payment step.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseOrderCreate))

	step := domain.StepAuthPending
	var notifyErr error

	ctx, span := observability.TracerOf(uc.tel).Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	advance := func() {
		step = step.Next()
		span.AddEvent("order." + string(step))
	}

	defer func() {
		lat := time.Since(start).Seconds()
		reached := step
		if err != nil {
			outcome = application.Outcome(err)
			if !step.Terminal() {
				step = domain.StepFailed
			}
		}

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseOrderCreate),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("step", string(step)),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if notifyErr != nil {
			fields = append(fields, observability.F("notification_error", notifyErr.Error()))
		}
		if err != nil {
			fields = append(fields,
				observability.F("failed_after", string(reached)),
				observability.F("error", err.Error()),
			)
			if cause := apperr.Cause(err); cause != err {
				fields = append(fields, observability.F("cause", cause.Error()))
			}
		}
		logger.Info("use_case_done", fields...)
	}()

	paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
	if paymentMethod == "" {
		statusText = "PAYMENT_METHOD_REQUIRED"
		return nil, apperr.Validation("Missing required fields")
	}

	email, err := uc.authorize(ctx, cmd)
	if err != nil {
		statusText = "UNAUTHORIZED"
		return nil, err
	}
	span.SetAttributes(attribute.String("order.email", email))

	unlock, err := uc.locks.Lock(ctx, email)
	if err != nil {
		statusText = "LOCK_ABORTED"
		return nil, err
	}
	defer unlock()

	var existing domain.Order
	switch rerr := uc.store.Read(ctx, document.Orders, email, &existing); {
	case rerr == nil:
		statusText = "ORDER_EXISTS"
		return nil, apperr.New(apperr.ErrConflict, msgOrderExists)
	case !errors.Is(rerr, document.ErrNotFound):
		statusText = "ORDER_LOOKUP_FAILED"
		return nil, apperr.Persistence(rerr, "Could not read the order")
	}

	items, err := uc.resolveCart(ctx, email)
	if err != nil {
		statusText = "CART_INVALID"
		return nil, err
	}
	advance()

	entity := domain.New(email, items)
	advance()
	span.SetAttributes(
		attribute.Int("order.items", len(items)),
		attribute.String("order.total", entity.Amount().String()),
	)

	receipt, err := uc.capture(ctx, entity, paymentMethod)
	if err != nil {
		statusText = "PAYMENT_FAILED"
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.id", receipt.ID))
	advance()

	switch cerr := uc.store.Create(ctx, document.Orders, email, entity); {
	case errors.Is(cerr, document.ErrAlreadyExists):
		statusText = "ORDER_EXISTS_AFTER_PAYMENT"
		logger.Error("order_persist_conflict_after_payment",
			observability.F("payment_id", receipt.ID),
		)
		return nil, apperr.Wrap(apperr.ErrConflict, cerr, msgOrderExists)
	case cerr != nil:
		statusText = "ORDER_PERSIST_FAILED"
		logger.Error("order_persist_failed_after_payment",
			observability.F("payment_id", receipt.ID),
			observability.F("error", cerr),
		)
		return nil, apperr.Persistence(cerr, "Could not create the new order")
	}
	advance()

	result := &CreateOrderResult{Order: entity, Receipt: receipt}
	if notifyErr = uc.notify(ctx, entity); notifyErr != nil {
		statusText = "NOTIFICATION_FAILED"
		result.Warning = "The order email couldn't be sent to " + email
		span.RecordError(notifyErr)
		logger.Warn("notification_failed", observability.F("error", notifyErr))
	}
	advance()
	advance()
	return result, nil
}

func (uc *CreateOrderUseCase) authorize(ctx context.Context, cmd CreateOrderInput) (string, error) {
	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		return uc.tokens.Authenticate(ctx, cmd.Token)
	}
	if !uc.tokens.Verify(ctx, cmd.Token, email) {
		return "", apperr.New(apperr.ErrUnauthorized, "Missing required token in header, or token is invalid")
	}
	return email, nil
}

// resolveCart returns the catalog entries for every name in the caller's
// cart. Any gap fails before payment is attempted.
func (uc *CreateOrderUseCase) resolveCart(ctx context.Context, email string) ([]catalog.Item, error) {
	var c domcart.Cart
	err := uc.store.Read(ctx, document.Carts, email, &c)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return nil, apperr.New(apperr.ErrInvalidState, "A cart for the current user %s doesn't exist or is empty", email)
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the cart")
	}
	if c.Empty() {
		return nil, apperr.New(apperr.ErrInvalidState, "A cart for the current user %s doesn't exist or is empty", email)
	}

	items, err := document.ReadMany[catalog.Item](ctx, uc.store, document.Items, c.Items)
	var ke *document.KeyError
	switch {
	case err == nil:
		return items, nil
	case errors.As(err, &ke) && (errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrInvalidKey)):
		return nil, apperr.New(apperr.ErrInvalidState, "The cart references an item that no longer exists: %s", ke.Key)
	default:
		return nil, apperr.Persistence(err, "Could not read the cart items")
	}
}

func (uc *CreateOrderUseCase) capture(ctx context.Context, o *domain.Order, paymentMethod string) (*payment.Receipt, error) {
	payCtx, cancel := context.WithTimeout(ctx, uc.opts.PaymentTimeout)
	defer cancel()

	callStart := time.Now()
	receipt, err := uc.payments.Capture(payCtx, payment.Charge{
		Amount:        o.Amount(),
		Currency:      uc.opts.Currency,
		PaymentMethod: paymentMethod,
		ReceiptEmail:  o.Email,
		Description:   "Order for " + o.Email,
	})
	if err == nil && receipt == nil {
		err = errors.New("payment processor returned no receipt")
	}
	uc.observeExternal(payCtx, paymentPeer, paymentEndpoint, callStart, err)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrExternalService, err, "The payment couldn't be created for %s: %v", o.Email, err)
	}
	return receipt, nil
}

func (uc *CreateOrderUseCase) notify(ctx context.Context, o *domain.Order) error {
	if uc.notifier == nil {
		return errors.New("no notifier configured")
	}
	// The order is already stored; a canceled request must not skip the email.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.NotifyTimeout)
	defer cancel()

	callStart := time.Now()
	err := uc.notifier.Send(notifyCtx, o.Confirmation())
	uc.observeExternal(notifyCtx, notificationPeer, notificationEndpoint, callStart, err)
	return err
}

func (uc *CreateOrderUseCase) observeExternal(callCtx context.Context, peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	switch {
	case err != nil && callCtx.Err() != nil:
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
