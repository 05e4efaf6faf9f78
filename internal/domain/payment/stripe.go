// internal/domain/payment/stripe.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
)

// StripeGateway charges stored customer payment methods through the Stripe
// REST API. Form-encoded requests with basic auth, per the Stripe wire format.
type StripeGateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewStripeGateway creates a Stripe-backed payment gateway
func NewStripeGateway(cfg *config.Config) *StripeGateway {
	return &StripeGateway{
		secretKey: cfg.External.Stripe.SecretKey,
		baseURL:   cfg.External.Stripe.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type stripeCustomer struct {
	ID              string `json:"id"`
	InvoiceSettings struct {
		DefaultPaymentMethod string `json:"default_payment_method"`
	} `json:"invoice_settings"`
	DefaultSource string `json:"default_source"`
}

type stripePaymentIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	LastCharge string `json:"latest_charge"`
}

type stripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

// DefaultPaymentMethod fetches the customer's default stored payment method
func (g *StripeGateway) DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error) {
	if customerRef == "" {
		return "", ErrNoPaymentMethod
	}

	body, err := g.makeAPICall(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerRef), nil, "")
	if err != nil {
		return "", err
	}

	var customer stripeCustomer
	if err := json.Unmarshal(body, &customer); err != nil {
		return "", fmt.Errorf("failed to parse customer response: %w", err)
	}

	if pm := customer.InvoiceSettings.DefaultPaymentMethod; pm != "" {
		return pm, nil
	}
	if customer.DefaultSource != "" {
		return customer.DefaultSource, nil
	}
	return "", ErrNoPaymentMethod
}

// CreateStoredCharge creates and confirms an off-session payment intent
func (g *StripeGateway) CreateStoredCharge(ctx context.Context, req *StoredChargeRequest) (*ChargeResult, error) {
	params := url.Values{}
	params.Set("amount", fmt.Sprintf("%d", req.Amount))
	params.Set("currency", strings.ToLower(req.Currency))
	params.Set("customer", req.CustomerRef)
	params.Set("payment_method", req.PaymentMethodID)
	params.Set("off_session", "true")
	params.Set("confirm", "true")
	if req.Description != "" {
		params.Set("description", req.Description)
	}

	body, err := g.makeAPICall(ctx, http.MethodPost, "/payment_intents", params, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var intent stripePaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent response: %w", err)
	}

	if intent.Status != "succeeded" {
		return nil, fmt.Errorf("%w: payment intent %s in status %s", ErrChargeDeclined, intent.ID, intent.Status)
	}

	return &ChargeResult{
		Reference: intent.ID,
		Status:    intent.Status,
	}, nil
}

// makeAPICall makes HTTP calls to the Stripe API
func (g *StripeGateway) makeAPICall(ctx context.Context, method, endpoint string, params url.Values, idempotencyKey string) ([]byte, error) {
	var reqBody *bytes.Buffer
	if params != nil {
		reqBody = bytes.NewBufferString(params.Encode())
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	req.SetBasicAuth(g.secretKey, "")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API call: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var stripeErr stripeErrorResponse
		if err := json.Unmarshal(respBody.Bytes(), &stripeErr); err == nil && stripeErr.Error.Message != "" {
			if stripeErr.Error.Type == "card_error" {
				return nil, fmt.Errorf("%w: %s", ErrChargeDeclined, stripeErr.Error.Message)
			}
			return nil, fmt.Errorf("API call failed with status %d: %s", resp.StatusCode, stripeErr.Error.Message)
		}
		return nil, fmt.Errorf("API call failed with status %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}
