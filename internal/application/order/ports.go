package order

import "context"

// TokenVerifier authorizes checkout requests.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenID, email string) bool
	Authenticate(ctx context.Context, tokenID string) (string, error)
}
