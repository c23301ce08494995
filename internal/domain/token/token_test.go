package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidBoundary(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	assert.False(t, (&Token{Expires: now.UnixMilli()}).Valid(now), "expiry equal to now is expired")
	assert.True(t, (&Token{Expires: now.UnixMilli() + 1}).Valid(now), "one unit before expiry is valid")
	assert.False(t, (&Token{Expires: now.UnixMilli() - 1}).Valid(now))
}

func TestNewAndExtend(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tok := New("abcdefghij0123456789", "a@b.com", now, DefaultTTL)

	assert.Equal(t, now.Add(time.Hour).UnixMilli(), tok.Expires)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt())

	later := now.Add(30 * time.Minute)
	tok.Extend(later, DefaultTTL)
	assert.Equal(t, later.Add(time.Hour).UnixMilli(), tok.Expires)
}
