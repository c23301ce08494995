// Package sendgrid delivers customer email through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	DefaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
	senderName   = "Minishop"
)

type Notifier struct {
	apiKey string
	host   string
	from   string
	log    observability.Logger
}

var _ notification.Notifier = (*Notifier)(nil)

func New(apiKey, host, from string, logger observability.Logger) *Notifier {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultHost
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Notifier{
		apiKey: apiKey,
		host:   host,
		from:   from,
		log:    logger.With(observability.F("component", "sendgrid_notifier")),
	}
}

func (n *Notifier) Send(ctx context.Context, msg notification.Message) error {
	if n.apiKey == "" {
		return errors.New("sendgrid: api key is empty")
	}
	if n.from == "" {
		return errors.New("sendgrid: from address is empty")
	}
	if msg.To == "" {
		return errors.New("sendgrid: to address is empty")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(senderName, n.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Body,
		"<p>"+html.EscapeString(msg.Body)+"</p>",
	)

	req := sendgrid.GetRequest(n.apiKey, sendEndpoint, n.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(message)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: send failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(res.Body))
	}

	logctx.FromOr(ctx, n.log).Debug("mail_sent",
		observability.F("status", res.StatusCode),
		observability.F("subject", msg.Subject),
	)
	return nil
}
