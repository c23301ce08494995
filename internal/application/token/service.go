package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/token"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

const (
	tokenService = "token-service"
	// issueAttempts bounds retries when a freshly generated id collides.
	issueAttempts = 3

	msgMissingFields = "Missing required fields"
	msgBadToken      = "Missing required token in header, or token is invalid"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store  document.Store
	hasher user.PasswordHasher
	ids    IDGenerator
	ttl    time.Duration
	now    application.Clock
	inst   *application.Instrument
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now application.Clock) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store document.Store, hasher user.PasswordHasher, ids IDGenerator, ttl time.Duration, tel observability.Observability, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	s := &Service{
		store:  store,
		hasher: hasher,
		ids:    ids,
		ttl:    ttl,
		now:    time.Now,
		inst:   application.NewInstrument(tel, tokenService),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue exchanges valid credentials for a new token.
func (s *Service) Issue(ctx context.Context, email, password string) (_ *domain.Token, err error) {
	ctx, run := s.inst.Start(ctx, "token.issue", "IssueToken")
	defer func() { run.End(err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		run.Status("MISSING_FIELDS")
		return nil, apperr.Validation(msgMissingFields)
	}

	u, err := document.Get[user.User](ctx, s.store, document.Users, email)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		run.Status("USER_NOT_FOUND")
		return nil, apperr.New(apperr.ErrInvalidCredentials, "Could not find the specified user")
	case err != nil:
		run.Status("USER_LOAD_FAILED")
		return nil, apperr.Persistence(err, "Could not find the specified user")
	}
	if !s.hasher.Matches(password, u.HashedPassword) {
		run.Status("PASSWORD_MISMATCH")
		return nil, apperr.New(apperr.ErrInvalidCredentials, "Password did not match the specified user's stored password")
	}

	for attempt := 1; ; attempt++ {
		t := domain.New(s.ids.NewID(), u.Email, s.now(), s.ttl)
		err = s.store.Create(ctx, document.Tokens, t.ID, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, document.ErrAlreadyExists) || attempt == issueAttempts {
			run.Status("TOKEN_CREATE_FAILED")
			return nil, apperr.Persistence(err, "Could not create the new token")
		}
		run.Logger().Warn("token_id_collision", observability.F("attempt", attempt))
	}
}

func (s *Service) Get(ctx context.Context, id string) (_ *domain.Token, err error) {
	ctx, run := s.inst.Start(ctx, "token.get", "GetToken")
	defer func() { run.End(err) }()

	if !domain.WellFormedID(id) {
		run.Status("ID_INVALID")
		return nil, apperr.Validation(msgMissingFields)
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Extend pushes a still-valid token's expiry to now+ttl.
func (s *Service) Extend(ctx context.Context, id string) (_ *domain.Token, err error) {
	ctx, run := s.inst.Start(ctx, "token.extend", "ExtendToken")
	defer func() { run.End(err) }()

	if !domain.WellFormedID(id) {
		run.Status("ID_INVALID")
		return nil, apperr.Validation("Missing required field(s) or field(s) are invalid")
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !t.Valid(now) {
		run.Status("TOKEN_EXPIRED")
		return nil, apperr.New(apperr.ErrExpired, "The token has already expired, and cannot be extended")
	}
	t.Extend(now, s.ttl)
	if err = s.store.Update(ctx, document.Tokens, t.ID, t); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "Specified token does not exist")
		}
		run.Status("TOKEN_UPDATE_FAILED")
		return nil, apperr.Persistence(err, "Could not update the token's expiration")
	}
	return t, nil
}

// Verify reports whether id names an unexpired token issued to email.
func (s *Service) Verify(ctx context.Context, id, email string) bool {
	t, ok := s.valid(ctx, id)
	return ok && t.Email == email
}

// Authenticate returns the email a valid token was issued to.
func (s *Service) Authenticate(ctx context.Context, id string) (string, error) {
	t, ok := s.valid(ctx, id)
	if !ok {
		return "", apperr.New(apperr.ErrUnauthorized, msgBadToken)
	}
	return t.Email, nil
}

func (s *Service) Revoke(ctx context.Context, id string) (err error) {
	ctx, run := s.inst.Start(ctx, "token.revoke", "RevokeToken")
	defer func() { run.End(err) }()

	if !domain.WellFormedID(id) {
		run.Status("ID_INVALID")
		return apperr.Validation(msgMissingFields)
	}
	err = s.store.Delete(ctx, document.Tokens, id)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return apperr.New(apperr.ErrNotFound, "Could not find the specified token")
	case err != nil:
		run.Status("TOKEN_DELETE_FAILED")
		return apperr.Persistence(err, "Could not delete the specified token")
	}
	return nil
}

// RevokeAll deletes every token issued to email and reports how many were
// removed. Tokens that disappear concurrently are skipped.
func (s *Service) RevokeAll(ctx context.Context, email string) (n int, err error) {
	ctx, run := s.inst.Start(ctx, "token.revoke_all", "RevokeAllTokens")
	defer func() { run.End(err, observability.F("revoked", n)) }()

	ids, err := s.store.List(ctx, document.Tokens)
	if err != nil {
		return 0, apperr.Persistence(err, "Could not list tokens")
	}
	for _, id := range ids {
		var t domain.Token
		if rerr := s.store.Read(ctx, document.Tokens, id, &t); rerr != nil {
			if errors.Is(rerr, document.ErrNotFound) {
				continue
			}
			return n, apperr.Persistence(rerr, "Could not read token")
		}
		if t.Email != email {
			continue
		}
		if derr := s.store.Delete(ctx, document.Tokens, id); derr != nil && !errors.Is(derr, document.ErrNotFound) {
			return n, apperr.Persistence(derr, "Could not delete token")
		}
		n++
	}
	return n, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Token, error) {
	t, err := document.Get[domain.Token](ctx, s.store, document.Tokens, id)
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrInvalidKey):
		return nil, apperr.New(apperr.ErrNotFound, "Specified token does not exist")
	case err != nil:
		return nil, apperr.Persistence(err, "Could not read the token")
	}
	return t, nil
}

func (s *Service) valid(ctx context.Context, id string) (*domain.Token, bool) {
	if !domain.WellFormedID(id) {
		return nil, false
	}
	t, err := document.Get[domain.Token](ctx, s.store, document.Tokens, id)
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			s.inst.Logger().Warn("token_lookup_failed", observability.F("error", err))
		}
		return nil, false
	}
	return t, t.Valid(s.now())
}
