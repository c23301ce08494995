package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Charge is what the checkout asks the processor to capture.
type Charge struct {
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	ReceiptEmail  string
	Description   string
}

type Receipt struct {
	ID     string
	Status Status
}

// Processor captures payments. A nil error means the money was captured.
type Processor interface {
	Capture(ctx context.Context, charge Charge) (*Receipt, error)
}
