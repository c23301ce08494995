package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	domoutbox "github.com/Zhima-Mochi/minishop-delivery/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

const (
	userService    = "user-service"
	publishTimeout = 300 * time.Millisecond
)

type Service struct {
	store     document.Store
	hasher    domain.PasswordHasher
	locks     application.KeyLocker
	publisher domoutbox.Publisher
	inst      *application.Instrument
}

func NewService(store document.Store, hasher domain.PasswordHasher, locks application.KeyLocker, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		store:     store,
		hasher:    hasher,
		locks:     locks,
		publisher: publisher,
		inst:      application.NewInstrument(tel, userService),
	}
}

type CreateInput struct {
	Name     string
	Email    string
	Address  string
	Password string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (_ *domain.Profile, err error) {
	ctx, run := s.inst.Start(ctx, "user.create", "CreateUser")
	defer func() { run.End(err) }()

	if strings.TrimSpace(in.Password) == "" {
		run.Status("MISSING_FIELDS")
		return nil, apperr.Validation("Missing required fields")
	}
	u, err := domain.New(in.Name, in.Email, in.Address, s.hasher.Hash(in.Password))
	if err != nil {
		run.Status("MISSING_FIELDS")
		return nil, err
	}
	if err := document.ValidateKey(document.Users, u.Email); err != nil {
		run.Status("EMAIL_INVALID")
		return nil, apperr.Validation("Missing required fields")
	}

	err = s.store.Create(ctx, document.Users, u.Email, u)
	switch {
	case errors.Is(err, document.ErrAlreadyExists):
		run.Status("USER_EXISTS")
		return nil, apperr.New(apperr.ErrConflict, "A user with that email already exists")
	case err != nil:
		run.Status("USER_CREATE_FAILED")
		return nil, apperr.Persistence(err, "Could not create the new user")
	}
	p := u.Profile()
	return &p, nil
}

func (s *Service) Get(ctx context.Context, email string) (_ *domain.Profile, err error) {
	ctx, run := s.inst.Start(ctx, "user.get", "GetUser")
	defer func() { run.End(err) }()

	u, err := s.load(ctx, email, "User not found")
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// UpdateInput carries optional replacements; nil fields are left unchanged.
type UpdateInput struct {
	Email    string
	Name     *string
	Address  *string
	Password *string
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (_ *domain.Profile, err error) {
	ctx, run := s.inst.Start(ctx, "user.update", "UpdateUser")
	defer func() { run.End(err) }()

	if in.Name == nil && in.Address == nil && in.Password == nil {
		run.Status("NOTHING_TO_UPDATE")
		return nil, apperr.Validation("Missing fields to update")
	}

	unlock, err := s.locks.Lock(ctx, document.Users+"/"+in.Email)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, err := s.load(ctx, in.Email, "The specified user does not exist")
	if err != nil {
		return nil, err
	}
	name, address, hashed := u.Name, u.Address, u.HashedPassword
	if in.Name != nil {
		name = *in.Name
	}
	if in.Address != nil {
		address = *in.Address
	}
	if in.Password != nil {
		if strings.TrimSpace(*in.Password) == "" {
			return nil, apperr.Validation("Missing fields to update")
		}
		hashed = s.hasher.Hash(*in.Password)
	}
	next, err := domain.New(name, u.Email, address, hashed)
	if err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, document.Users, u.Email, next)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return nil, apperr.New(apperr.ErrNotFound, "The specified user does not exist")
	case err != nil:
		run.Status("USER_UPDATE_FAILED")
		return nil, apperr.Persistence(err, "Could not update the user")
	}
	p := next.Profile()
	return &p, nil
}

// Delete removes the user and announces it so dependent documents can be
// cleaned up asynchronously.
func (s *Service) Delete(ctx context.Context, email string) (err error) {
	ctx, run := s.inst.Start(ctx, "user.delete", "DeleteUser")
	defer func() { run.End(err) }()

	err = s.store.Delete(ctx, document.Users, email)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return apperr.New(apperr.ErrNotFound, "Could not find the specified user")
	case err != nil:
		run.Status("USER_DELETE_FAILED")
		return apperr.Persistence(err, "Could not delete the specified user")
	}

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if perr := s.publisher.Publish(pubCtx, domain.NewDeletedEvent(email)); perr != nil {
			run.Status("EVENT_PUBLISH_FAILED")
			run.Logger().Warn("event_publish_failed",
				observability.F("event", domain.DeletedEvent{}.EventName()),
				observability.F("error", perr.Error()),
			)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, email, notFound string) (*domain.User, error) {
	u, err := document.Get[domain.User](ctx, s.store, document.Users, email)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return nil, apperr.New(apperr.ErrNotFound, "%s", notFound)
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the user")
	}
	return u, nil
}
