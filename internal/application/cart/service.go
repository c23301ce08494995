package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

const cartService = "cart-service"

// Catalog reports which of names are not known items.
type Catalog interface {
	Missing(ctx context.Context, names []string) ([]string, error)
}

type Service struct {
	store   document.Store
	catalog Catalog
	inst    *application.Instrument
}

func NewService(store document.Store, catalog Catalog, tel observability.Observability) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		inst:    application.NewInstrument(tel, cartService),
	}
}

func (s *Service) Create(ctx context.Context, email string, items []string) (_ *domain.Cart, err error) {
	ctx, run := s.inst.Start(ctx, "cart.create", "CreateCart")
	defer func() { run.End(err) }()

	c, err := s.validate(ctx, run, email, items)
	if err != nil {
		return nil, err
	}
	err = s.store.Create(ctx, document.Carts, email, c)
	switch {
	case errors.Is(err, document.ErrAlreadyExists):
		run.Status("CART_EXISTS")
		return nil, apperr.New(apperr.ErrConflict, "A cart for the current user already exists")
	case err != nil:
		run.Status("CART_CREATE_FAILED")
		return nil, apperr.Persistence(err, "Could not create the new cart")
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, email string) (_ *domain.Cart, err error) {
	ctx, run := s.inst.Start(ctx, "cart.get", "GetCart")
	defer func() { run.End(err) }()

	c, err := document.Get[domain.Cart](ctx, s.store, document.Carts, email)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return nil, apperr.New(apperr.ErrNotFound, "Cart not found")
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the cart")
	}
	return c, nil
}

// Update replaces the item list of an existing cart.
func (s *Service) Update(ctx context.Context, email string, items []string) (_ *domain.Cart, err error) {
	ctx, run := s.inst.Start(ctx, "cart.update", "UpdateCart")
	defer func() { run.End(err) }()

	c, err := s.validate(ctx, run, email, items)
	if err != nil {
		return nil, err
	}
	err = s.store.Update(ctx, document.Carts, email, c)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		run.Status("CART_NOT_FOUND")
		return nil, apperr.New(apperr.ErrNotFound, "Specified cart does not exist")
	case err != nil:
		run.Status("CART_UPDATE_FAILED")
		return nil, apperr.Persistence(err, "Could not update the cart")
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, email string) (err error) {
	ctx, run := s.inst.Start(ctx, "cart.delete", "DeleteCart")
	defer func() { run.End(err) }()

	err = s.store.Delete(ctx, document.Carts, email)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return apperr.New(apperr.ErrNotFound, "Could not find the specified cart")
	case err != nil:
		run.Status("CART_DELETE_FAILED")
		return apperr.Persistence(err, "Could not delete the specified cart")
	}
	return nil
}

// validate resolves the whole item list before any write and reports every
// unknown name at once.
func (s *Service) validate(ctx context.Context, run *application.Run, email string, items []string) (*domain.Cart, error) {
	names, err := domain.NormalizeItems(items)
	if err != nil {
		run.Status("MISSING_FIELDS")
		return nil, err
	}
	missing, err := s.catalog.Missing(ctx, names)
	if err != nil {
		run.Status("CATALOG_LOOKUP_FAILED")
		return nil, err
	}
	if len(missing) > 0 {
		run.Status("UNKNOWN_ITEMS")
		return nil, apperr.Validation("These items do not exist: %s", strings.Join(missing, ","))
	}
	return &domain.Cart{Email: email, Items: names}, nil
}
