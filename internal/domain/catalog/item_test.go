package catalog

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemValidation(t *testing.T) {
	cases := []struct {
		name, desc string
		price      float64
		ok         bool
	}{
		{"margherita", "tomato, mozzarella", 10, true},
		{"  ", "tomato", 10, false},
		{"margherita", "", 10, false},
		{"margherita", "tomato", 0, false},
		{"margherita", "tomato", -3, false},
	}
	for _, c := range cases {
		_, err := NewItem(c.name, c.desc, c.price)
		if c.ok {
			assert.NoError(t, err)
		} else {
			assert.True(t, errors.Is(err, apperr.ErrValidation), "%+v", c)
		}
	}
}

func TestPatchKeepsItemOnInvalidPrice(t *testing.T) {
	it, err := NewItem("margherita", "tomato", 10)
	require.NoError(t, err)

	bad := -1.0
	assert.Error(t, it.Patch(nil, &bad))
	assert.Equal(t, 10.0, it.Price)

	desc := "tomato, basil"
	require.NoError(t, it.Patch(&desc, nil))
	assert.Equal(t, "tomato, basil", it.Description)

	assert.Error(t, it.Patch(nil, nil))
}
