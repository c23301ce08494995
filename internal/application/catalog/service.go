package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

const catalogService = "catalog-service"

type Service struct {
	store document.Store
	locks application.KeyLocker
	inst  *application.Instrument
}

func NewService(store document.Store, locks application.KeyLocker, tel observability.Observability) *Service {
	return &Service{
		store: store,
		locks: locks,
		inst:  application.NewInstrument(tel, catalogService),
	}
}

func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	var it domain.Item
	err := s.store.Read(ctx, document.Items, name, &it)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return false, nil
	default:
		return false, apperr.Persistence(err, "Could not read the item")
	}
}

func (s *Service) Get(ctx context.Context, name string) (_ *domain.Item, err error) {
	ctx, run := s.inst.Start(ctx, "catalog.get", "GetItem")
	defer func() { run.End(err) }()

	return s.load(ctx, name, "Item not found")
}

// List returns every item ordered by name. Items removed while listing are
// left out.
func (s *Service) List(ctx context.Context) (_ []domain.Item, err error) {
	ctx, run := s.inst.Start(ctx, "catalog.list", "ListItems")
	defer func() { run.End(err) }()

	names, err := s.store.List(ctx, document.Items)
	if err != nil {
		return nil, apperr.Persistence(err, "Could not list the items")
	}
	items := make([]domain.Item, 0, len(names))
	for _, name := range names {
		var it domain.Item
		if rerr := s.store.Read(ctx, document.Items, name, &it); rerr != nil {
			if errors.Is(rerr, document.ErrNotFound) {
				continue
			}
			return nil, apperr.Persistence(rerr, "Could not read the items")
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, name, description string, price float64) (_ *domain.Item, err error) {
	ctx, run := s.inst.Start(ctx, "catalog.create", "CreateItem")
	defer func() { run.End(err) }()

	it, err := s.newItem(name, description, price)
	if err != nil {
		run.Status("MISSING_FIELDS")
		return nil, err
	}
	err = s.store.Create(ctx, document.Items, it.Name, it)
	switch {
	case errors.Is(err, document.ErrAlreadyExists):
		run.Status("ITEM_EXISTS")
		return nil, apperr.New(apperr.ErrConflict, "An item with that name already exists")
	case err != nil:
		run.Status("ITEM_CREATE_FAILED")
		return nil, apperr.Persistence(err, "Could not create the new item")
	}
	return it, nil
}

// Update changes the description and/or price of an existing item.
func (s *Service) Update(ctx context.Context, name string, description *string, price *float64) (_ *domain.Item, err error) {
	ctx, run := s.inst.Start(ctx, "catalog.update", "UpdateItem")
	defer func() { run.End(err) }()

	if description == nil && price == nil {
		run.Status("NOTHING_TO_UPDATE")
		return nil, apperr.Validation("Missing fields to update")
	}
	unlock, err := s.locks.Lock(ctx, document.Items+"/"+name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	it, err := s.load(ctx, name, "Specified item does not exist")
	if err != nil {
		return nil, err
	}
	if err := it.Patch(description, price); err != nil {
		return nil, err
	}
	err = s.store.Update(ctx, document.Items, it.Name, it)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return nil, apperr.New(apperr.ErrNotFound, "Specified item does not exist")
	case err != nil:
		run.Status("ITEM_UPDATE_FAILED")
		return nil, apperr.Persistence(err, "Could not update the item")
	}
	return it, nil
}

// Upsert writes it whether or not an item of that name exists.
func (s *Service) Upsert(ctx context.Context, it domain.Item) (err error) {
	ctx, run := s.inst.Start(ctx, "catalog.upsert", "UpsertItem")
	defer func() { run.End(err) }()

	valid, err := s.newItem(it.Name, it.Description, it.Price)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, document.Items+"/"+valid.Name)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.Create(ctx, document.Items, valid.Name, valid)
	if errors.Is(err, document.ErrAlreadyExists) {
		err = s.store.Update(ctx, document.Items, valid.Name, valid)
	}
	if err != nil {
		return apperr.Persistence(err, "Could not store the item")
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, name string) (err error) {
	ctx, run := s.inst.Start(ctx, "catalog.delete", "DeleteItem")
	defer func() { run.End(err) }()

	err = s.store.Delete(ctx, document.Items, name)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return apperr.New(apperr.ErrNotFound, "Could not find the specified item")
	case err != nil:
		run.Status("ITEM_DELETE_FAILED")
		return apperr.Persistence(err, "Could not delete the specified item")
	}
	return nil
}

// Missing returns, in request order and without duplicates, every name that
// is not in the catalog. The catalog is listed once for the whole batch.
func (s *Service) Missing(ctx context.Context, names []string) ([]string, error) {
	keys, err := s.store.List(ctx, document.Items)
	if err != nil {
		return nil, apperr.Persistence(err, "Could not list the items")
	}
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{})
	for _, n := range names {
		if _, ok := known[n]; ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		missing = append(missing, n)
	}
	return missing, nil
}

func (s *Service) newItem(name, description string, price float64) (*domain.Item, error) {
	it, err := domain.NewItem(name, description, price)
	if err != nil {
		return nil, err
	}
	if document.ValidateKey(document.Items, it.Name) != nil || strings.ContainsRune(it.Name, ',') {
		return nil, apperr.Validation("Item name contains forbidden characters")
	}
	return it, nil
}

func (s *Service) load(ctx context.Context, name, notFound string) (*domain.Item, error) {
	it, err := document.Get[domain.Item](ctx, s.store, document.Items, name)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return nil, apperr.New(apperr.ErrNotFound, "%s", notFound)
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the item")
	}
	return it, nil
}
