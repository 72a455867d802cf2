// Package payments talks to the hosted checkout provider: it opens
// checkout sessions and verifies the signed webhooks that confirm them.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"
)

const checkoutSessionsPath = "/v1/checkout/sessions"

// IProvider is the slice of the provider API the listing flow needs.
type IProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string, now time.Time) (*Event, error)
}

type CheckoutRequest struct {
	ListingID   string
	ProductName string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider returned %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	client        *resty.Client
	webhookSecret string
	tolerance     time.Duration
}

func NewClient(baseURL, secretKey, webhookSecret string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(secretKey).
		SetTimeout(15 * time.Second)

	return &Client{
		client:        client,
		webhookSecret: webhookSecret,
		tolerance:     DefaultTolerance,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// CreateCheckoutSession opens a one-off payment for a listing. The listing
// id travels as client_reference_id and metadata so the webhook can find
// it again.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	res, err := c.r(ctx).
		SetDoNotParseResponse(true).
		SetFormData(map[string]string{
			"mode":                                          "payment",
			"success_url":                                   req.SuccessURL,
			"cancel_url":                                    req.CancelURL,
			"client_reference_id":                           req.ListingID,
			"metadata[listing_id]":                          req.ListingID,
			"line_items[0][quantity]":                       "1",
			"line_items[0][price_data][currency]":           req.Currency,
			"line_items[0][price_data][unit_amount]":        strconv.FormatInt(req.AmountCents, 10),
			"line_items[0][price_data][product_data][name]": req.ProductName,
		}).
		Post(checkoutSessionsPath)
	if err != nil {
		return nil, fmt.Errorf("checkout session request failed: %w", err)
	}
	defer res.RawResponse.Body.Close()

	if res.IsError() {
		apiErr := &APIError{StatusCode: res.StatusCode(), Message: res.Status()}
		var body errorBody
		if json.NewDecoder(res.RawResponse.Body).Decode(&body) == nil && body.Error.Message != "" {
			apiErr.Message = body.Error.Message
		}
		return nil, apiErr
	}

	var session CheckoutSession
	if err := json.NewDecoder(res.RawResponse.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("checkout session response missing id or url")
	}
	return &session, nil
}
