package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

var _ application.UseCase[string, *domain.Order] = (*GetOrderUseCase)(nil)

// GetOrderUseCase returns the order owned by the bearer of a token.
type GetOrderUseCase struct {
	store  document.Store
	tokens TokenVerifier
	inst   *application.Instrument
}

func NewGetOrderUseCase(store document.Store, tokens TokenVerifier, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{
		store:  store,
		tokens: tokens,
		inst:   application.NewInstrument(tel, orderService),
	}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, tokenID string) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Start(ctx, "order.get", "GetOrder")
	defer func() { run.End(err) }()

	email, err := uc.tokens.Authenticate(ctx, tokenID)
	if err != nil {
		run.Status("UNAUTHORIZED")
		return nil, err
	}
	o, err := document.Get[domain.Order](ctx, uc.store, document.Orders, email)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return nil, apperr.New(apperr.ErrNotFound, "Order not found")
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the order")
	}
	return o, nil
}
