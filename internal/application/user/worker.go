package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-delivery/internal/application"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	domoutbox "github.com/Zhima-Mochi/minishop-delivery/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const cleanupWorker = "account-cleanup-worker"

type TokenRevoker interface {
	RevokeAll(ctx context.Context, email string) (int, error)
}

type CartRemover interface {
	Delete(ctx context.Context, email string) error
}

// CleanupWorker removes the tokens and cart of deleted users. The order is a
// receipt and is kept.
type CleanupWorker struct {
	subscriber domoutbox.Subscriber
	tokens     TokenRevoker
	carts      CartRemover
	inst       *application.Instrument
}

func NewCleanupWorker(subscriber domoutbox.Subscriber, tokens TokenRevoker, carts CartRemover, tel observability.Observability) *CleanupWorker {
	return &CleanupWorker{
		subscriber: subscriber,
		tokens:     tokens,
		carts:      carts,
		inst:       application.NewInstrument(tel, cleanupWorker),
	}
}

func (w *CleanupWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domain.DeletedEvent{}.EventName(), w.handleUserDeleted)
}

func (w *CleanupWorker) handleUserDeleted(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domain.DeletedEvent)
	if !ok {
		return nil
	}
	ctx, run := w.inst.Start(ctx, "user.worker.deleted", "UserDeleted",
		attribute.String("event", e.EventName()),
	)
	var revoked int
	var cartRemoved bool
	defer func() {
		run.End(err,
			observability.F("tokens_revoked", revoked),
			observability.F("cart_removed", cartRemoved),
		)
	}()

	revoked, err = w.tokens.RevokeAll(ctx, evt.Email)
	if err != nil {
		run.Status("TOKEN_REVOKE_FAILED")
		return fmt.Errorf("cleanup: revoke tokens: %w", err)
	}

	err = w.carts.Delete(ctx, evt.Email)
	switch {
	case err == nil:
		cartRemoved = true
	case errors.Is(err, apperr.ErrNotFound):
		err = nil
	default:
		run.Status("CART_DELETE_FAILED")
		return fmt.Errorf("cleanup: delete cart: %w", err)
	}
	return nil
}
