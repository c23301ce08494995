// Package stripe captures payments through the Stripe PaymentIntents API.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
)

const (
	DefaultBaseURL  = "https://api.stripe.com"
	paymentIntents  = "/v1/payment_intents"
	maxResponseBody = 1 << 20
)

type Client struct {
	baseURL string
	secret  string
	client  *http.Client
	log     observability.Logger
}

var _ payment.Processor = (*Client)(nil)

// New returns a client that authenticates with secret. timeout bounds each
// request in addition to any deadline on the caller's context.
func New(baseURL, secret string, timeout time.Duration, logger observability.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		log:     logger.With(observability.F("component", "stripe_client")),
	}
}

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Capture creates and confirms a PaymentIntent for the charge.
func (c *Client) Capture(ctx context.Context, charge payment.Charge) (*payment.Receipt, error) {
	if c.secret == "" {
		return nil, errors.New("stripe: secret key is not configured")
	}
	if !charge.Amount.IsPositive() {
		return nil, fmt.Errorf("stripe: amount must be positive, got %s", charge.Amount)
	}
	currency := strings.ToLower(charge.Currency)
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("amount", charge.Amount.Shift(2).Round(0).String())
	form.Set("currency", currency)
	form.Set("payment_method", charge.PaymentMethod)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	if charge.Description != "" {
		form.Set("description", charge.Description)
	}
	if charge.ReceiptEmail != "" {
		form.Set("receipt_email", charge.ReceiptEmail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentIntents, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: build request: %w", err)
	}
	req.SetBasicAuth(c.secret, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("stripe: read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		logctx.FromOr(ctx, c.log).Warn("stripe_request_rejected",
			observability.F("status", res.StatusCode),
			observability.F("code", e.Error.Code),
		)
		return nil, fmt.Errorf("stripe: %s", msg)
	}

	var intent intentResponse
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("stripe: decode response: %w", err)
	}
	switch intent.Status {
	case "succeeded", "processing", "requires_capture":
		return &payment.Receipt{ID: intent.ID, Status: payment.StatusSucceeded}, nil
	default:
		return nil, fmt.Errorf("stripe: payment intent %s ended in status %q", intent.ID, intent.Status)
	}
}
