package catalog

import (
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
)

// Item is a catalog entry, stored in the items collection under its name.
type Item struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func NewItem(name, description string, price float64) (*Item, error) {
	it := &Item{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Price:       price,
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Item) Validate() error {
	if it.Name == "" || it.Description == "" || !(it.Price > 0) {
		return apperr.Validation("Missing required fields")
	}
	return nil
}

// Patch applies the non-nil fields. At least one must be set.
func (it *Item) Patch(description *string, price *float64) error {
	if description == nil && price == nil {
		return apperr.Validation("Missing fields to update")
	}
	next := *it
	if description != nil {
		next.Description = strings.TrimSpace(*description)
	}
	if price != nil {
		next.Price = *price
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*it = next
	return nil
}
