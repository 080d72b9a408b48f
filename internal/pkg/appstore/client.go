package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/healhub/healhub-auth/internal/pkg/env"
)

const (
	defaultVerifyURL        = "https://buy.itunes.apple.com/verifyReceipt"
	defaultSandboxVerifyURL = "https://sandbox.itunes.apple.com/verifyReceipt"

	defaultHTTPTimeout = 8 * time.Second

	// maxResponseBytes caps how much of a verification response is read.
	maxResponseBytes = 4 << 20
)

// Verification status codes returned by the App Store.
const (
	statusOK                 = 0
	statusMalformedJSON      = 21000
	statusMalformedReceipt   = 21002
	statusNotAuthorized      = 21003
	statusBadSharedSecret    = 21004
	statusServerUnavailable  = 21005
	statusSubscriptionLapsed = 21006
	statusSandboxReceipt     = 21007
	statusProductionReceipt  = 21008
	statusInternalError      = 21009
	statusAccountNotFound    = 21010
)

var (
	// ErrInvalidReceipt marks receipts the App Store definitively rejected.
	// Callers report these to the user instead of retrying.
	ErrInvalidReceipt = errors.New("receipt rejected by the app store")

	// ErrVerificationUnavailable marks transient failures where no verdict on
	// the receipt was reached. Callers must not treat these as a rejection.
	ErrVerificationUnavailable = errors.New("receipt verification unavailable")
)

// Purchase is the normalized result of a verified subscription receipt.
type Purchase struct {
	TransactionID string
	ProductID     string
	ExpiresAt     time.Time
}

// Verifier validates purchase receipts against the App Store.
type Verifier interface {
	// VerifyReceipt returns the most durable purchase found in the receipt.
	// A nil purchase with a nil error means the receipt is valid but carries
	// no subscription entry.
	VerifyReceipt(ctx context.Context, receiptData string) (*Purchase, error)
}

// Client talks to Apple's verifyReceipt endpoint.
type Client struct {
	SharedSecret     string
	VerifyURL        string
	SandboxVerifyURL string
	HTTPClient       *http.Client
}

// NewClientFromEnv creates a verification client configured from environment
// variables. APPLE_VERIFY_URL and APPLE_SANDBOX_VERIFY_URL are overridable so
// staging setups can point at a stub server.
func NewClientFromEnv() *Client {
	return &Client{
		SharedSecret:     strings.TrimSpace(env.GetEnv("APPLE_SHARED_SECRET", "")),
		VerifyURL:        strings.TrimSpace(env.GetEnv("APPLE_VERIFY_URL", defaultVerifyURL)),
		SandboxVerifyURL: strings.TrimSpace(env.GetEnv("APPLE_SANDBOX_VERIFY_URL", defaultSandboxVerifyURL)),
		HTTPClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// receiptEntry mirrors one purchase entry in the verification response.
// Apple encodes epoch milliseconds as strings.
type receiptEntry struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	ExpiresDateMS string `json:"expires_date_ms"`
}

type verifyResponse struct {
	Status            int            `json:"status"`
	LatestReceiptInfo []receiptEntry `json:"latest_receipt_info"`
	Receipt           struct {
		InApp []receiptEntry `json:"in_app"`
	} `json:"receipt"`
}

// VerifyReceipt posts the base64 receipt blob to the verification endpoint
// and normalizes the outcome. A sandbox receipt sent to production (status
// 21007) is retried once against the sandbox endpoint, and the reverse
// (21008) against production, so TestFlight builds keep working.
func (c *Client) VerifyReceipt(ctx context.Context, receiptData string) (*Purchase, error) {
	receipt := strings.TrimSpace(receiptData)
	if receipt == "" {
		return nil, nil
	}
	if c.SharedSecret == "" {
		return nil, fmt.Errorf("%w: shared secret is not configured", ErrVerificationUnavailable)
	}

	resp, err := c.post(ctx, c.verifyURL(), receipt)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusSandboxReceipt:
		resp, err = c.post(ctx, c.sandboxVerifyURL(), receipt)
	case statusProductionReceipt:
		resp, err = c.post(ctx, c.verifyURL(), receipt)
	}
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK, statusSubscriptionLapsed:
		// A lapsed subscription (21006) still carries its transaction
		// entries. They are recorded as-is; expiry is enforced at read time.
	case statusMalformedJSON, statusMalformedReceipt, statusNotAuthorized:
		return nil, fmt.Errorf("%w: status %d", ErrInvalidReceipt, resp.Status)
	case statusAccountNotFound:
		return nil, nil
	default:
		// Covers 21004, 21005, 21009 and anything undocumented. No verdict
		// on the receipt was reached, so it must not count as a rejection.
		return nil, fmt.Errorf("%w: status %d", ErrVerificationUnavailable, resp.Status)
	}

	entries := resp.LatestReceiptInfo
	if len(entries) == 0 {
		entries = resp.Receipt.InApp
	}
	return latestPurchase(entries), nil
}

func (c *Client) post(ctx context.Context, url, receipt string) (*verifyResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"receipt-data":             receipt,
		"password":                 c.SharedSecret,
		"exclude-old-transactions": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrVerificationUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrVerificationUnavailable, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrVerificationUnavailable, err)
	}
	return &out, nil
}

func (c *Client) verifyURL() string {
	if c.VerifyURL != "" {
		return c.VerifyURL
	}
	return defaultVerifyURL
}

func (c *Client) sandboxVerifyURL() string {
	if c.SandboxVerifyURL != "" {
		return c.SandboxVerifyURL
	}
	return defaultSandboxVerifyURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// latestPurchase picks the entry with the greatest expiry. Entries without a
// parseable expiry are one-time purchases, not subscriptions, and are skipped.
func latestPurchase(entries []receiptEntry) *Purchase {
	var best *Purchase
	for _, entry := range entries {
		ms, err := strconv.ParseInt(strings.TrimSpace(entry.ExpiresDateMS), 10, 64)
		if err != nil || ms <= 0 {
			continue
		}
		if strings.TrimSpace(entry.TransactionID) == "" {
			continue
		}
		expiresAt := time.UnixMilli(ms).UTC()
		if best == nil || expiresAt.After(best.ExpiresAt) {
			best = &Purchase{
				TransactionID: strings.TrimSpace(entry.TransactionID),
				ProductID:     strings.TrimSpace(entry.ProductID),
				ExpiresAt:     expiresAt,
			}
		}
	}
	return best
}
