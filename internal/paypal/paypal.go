// Package paypal wraps the PayPal Checkout Orders REST API behind the
// payment-provider capability the checkout depends on.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the capture status sentinel that settlement requires.
const StatusCompleted = "COMPLETED"

// CaptureResult is the provider-side outcome of capturing a payment.
type CaptureResult struct {
	ID         string
	Status     string
	PayerEmail string
	Amount     string
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewClient creates a PayPal API client. baseURL selects sandbox vs live.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrder creates a provider order for the given amount and returns the
// provider order id. The bearer token is fetched per call; no token caching.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": "USD",
					"value":         amount.StringFixed(2),
				},
			},
		},
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/v2/checkout/orders", token, body, &created); err != nil {
		return "", fmt.Errorf("paypal create order: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("paypal create order: empty order id in response")
	}
	return created.ID, nil
}

// CaptureOrder captures a previously created provider order.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*CaptureResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var captured struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}

	path := "/v2/checkout/orders/" + providerOrderID + "/capture"
	if err := c.postJSON(ctx, path, token, nil, &captured); err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	result := &CaptureResult{
		ID:         captured.ID,
		Status:     captured.Status,
		PayerEmail: captured.Payer.EmailAddress,
	}
	if len(captured.PurchaseUnits) > 0 {
		caps := captured.PurchaseUnits[0].Payments.Captures
		if len(caps) > 0 {
			result.Amount = caps[0].Amount.Value
		}
	}
	return result, nil
}

// accessToken fetches an OAuth2 client-credentials bearer token.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("paypal token decode: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("paypal token response missing access_token")
	}
	return tokenResp.AccessToken, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("paypal request failed: status=%d body=%s", resp.StatusCode, string(msg))
}
