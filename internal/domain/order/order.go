package order

import (
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/notification"
	"github.com/shopspring/decimal"
)

// Order is the receipt of a completed checkout, stored in the orders
// collection under the owner's email. Items are copies of the catalog entries
// at checkout time.
type Order struct {
	Email       string         `json:"email"`
	Items       []catalog.Item `json:"items"`
	TotalAmount float64        `json:"totalAmount"`
}

func New(email string, items []catalog.Item) *Order {
	return &Order{
		Email:       email,
		Items:       items,
		TotalAmount: Total(items).InexactFloat64(),
	}
}

// Total sums the item prices starting from zero.
func Total(items []catalog.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price))
	}
	return sum
}

// Amount is TotalAmount as an exact decimal.
func (o *Order) Amount() decimal.Decimal {
	return decimal.NewFromFloat(o.TotalAmount)
}

func (o *Order) ItemNames() []string {
	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		names = append(names, it.Name)
	}
	return names
}

const confirmationSubject = "You have made a Pizza Order!"

// Confirmation is the email sent to the customer once the order is stored.
func (o *Order) Confirmation() notification.Message {
	return notification.Message{
		To:      o.Email,
		Subject: confirmationSubject,
		Body: fmt.Sprintf("You have ordered %s for a total amount of %s",
			strings.Join(o.ItemNames(), ", "), o.Amount().StringFixed(2)),
	}
}
