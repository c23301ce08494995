package token

import "time"

const (
	// IDLength is the length of every token id.
	IDLength = 20
	// DefaultTTL is how long an issued or extended token stays valid.
	DefaultTTL = time.Hour
)

// Token authorizes its bearer to act as Email until Expires (unix milliseconds).
type Token struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Expires int64  `json:"expires"`
}

func New(id, email string, now time.Time, ttl time.Duration) *Token {
	return &Token{ID: id, Email: email, Expires: now.Add(ttl).UnixMilli()}
}

// Valid reports whether the token is still usable at now. A token whose
// expiry equals now is already expired.
func (t *Token) Valid(now time.Time) bool {
	return t.Expires > now.UnixMilli()
}

func (t *Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expires)
}

// Extend pushes the expiry to now+ttl.
func (t *Token) Extend(now time.Time, ttl time.Duration) {
	t.Expires = now.Add(ttl).UnixMilli()
}

// WellFormedID reports whether id has the shape of an issued token id.
func WellFormedID(id string) bool {
	return len(id) == IDLength
}
