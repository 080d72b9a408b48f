// Package client is a typed HTTP client for the HealHub auth service. The
// web backend uses it to sign users in and to gate premium remedy content.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a service response is read.
	maxResponseBytes = 1 << 20
)

// Client calls the auth service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// AuthRequest mirrors the sign-in payload. There is no expiration field; the
// service derives expiry from the verified receipt alone.
type AuthRequest struct {
	PlatformUserID string `json:"platformUserId"`
	Email          string `json:"email"`
	ReceiptData    string `json:"receiptData"`
}

// AuthUser is the user block of a successful sign-in response.
type AuthUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// AuthResponse is a successful sign-in response.
type AuthResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	User    AuthUser `json:"user"`
}

// SubscriptionInfo describes the purchase backing an active entitlement.
type SubscriptionInfo struct {
	ProductID string    `json:"productId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SubscriptionStatus is the answer to an entitlement query.
type SubscriptionStatus struct {
	IsActive     bool              `json:"isActive"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
}

// AuthenticateWithApple signs a user in and returns their session token.
func (c *Client) AuthenticateWithApple(ctx context.Context, authReq AuthRequest) (*AuthResponse, error) {
	payload, err := json.Marshal(authReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/apple", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if !out.Success || strings.TrimSpace(out.Token) == "" {
		return nil, errors.New("auth response carries no session token")
	}
	return &out, nil
}

// SubscriptionStatus checks the entitlement behind a session token.
func (c *Client) SubscriptionStatus(ctx context.Context, token string) (*SubscriptionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/subscription/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out SubscriptionStatus
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to auth service failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read auth service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
