package cart

import (
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
)

// Cart lists the item names a user intends to order. It is stored in the
// carts collection under the owner's email.
type Cart struct {
	Email string   `json:"email"`
	Items []string `json:"items"`
}

// NormalizeItems trims every name. A nil list means the field was absent.
func NormalizeItems(items []string) ([]string, error) {
	if items == nil {
		return nil, apperr.Validation("Missing required fields")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			return nil, apperr.Validation("Item names must not be empty")
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }
