package notification

import "context"

type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message to a customer.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
