package appstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testClient(verifyURL, sandboxURL string) *Client {
	return &Client{
		SharedSecret:     "test-shared-secret",
		VerifyURL:        verifyURL,
		SandboxVerifyURL: sandboxURL,
		HTTPClient:       &http.Client{Timeout: 2 * time.Second},
	}
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func TestVerifyReceiptActiveSubscription(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	older := now.Add(30 * 24 * time.Hour)
	newer := now.Add(60 * 24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ReceiptData string `json:"receipt-data"`
			Password    string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode verification request: %v", err)
		}
		if req.ReceiptData != "base64-receipt-blob" {
			t.Errorf("unexpected receipt-data: %q", req.ReceiptData)
		}
		if req.Password != "test-shared-secret" {
			t.Errorf("unexpected password: %q", req.Password)
		}

		resp := map[string]interface{}{
			"status": 0,
			"latest_receipt_info": []map[string]string{
				{"transaction_id": "tx-1", "product_id": "healhub.monthly", "expires_date_ms": epochMillis(older)},
				{"transaction_id": "tx-2", "product_id": "healhub.yearly", "expires_date_ms": epochMillis(newer)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "base64-receipt-blob")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase == nil {
		t.Fatal("expected a purchase, got nil")
	}
	if purchase.TransactionID != "tx-2" {
		t.Errorf("expected the entry with the greatest expiry, got %q", purchase.TransactionID)
	}
	if purchase.ProductID != "healhub.yearly" {
		t.Errorf("unexpected product id: %q", purchase.ProductID)
	}
	if !purchase.ExpiresAt.Equal(newer) {
		t.Errorf("expected expiry %v, got %v", newer, purchase.ExpiresAt)
	}
}

func TestVerifyReceiptSandboxRetry(t *testing.T) {
	expiry := time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Millisecond)

	var sandboxCalls int
	sandbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sandboxCalls++
		resp := map[string]interface{}{
			"status": 0,
			"latest_receipt_info": []map[string]string{
				{"transaction_id": "tx-sandbox", "product_id": "healhub.monthly", "expires_date_ms": epochMillis(expiry)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer sandbox.Close()

	var productionCalls int
	production := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productionCalls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 21007})
	}))
	defer production.Close()

	client := testClient(production.URL, sandbox.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "sandbox-receipt")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase == nil || purchase.TransactionID != "tx-sandbox" {
		t.Fatalf("expected sandbox purchase, got %+v", purchase)
	}
	if productionCalls != 1 || sandboxCalls != 1 {
		t.Errorf("expected one call per environment, got production=%d sandbox=%d", productionCalls, sandboxCalls)
	}
}

func TestVerifyReceiptStatusMapping(t *testing.T) {
	tests := []struct {
		status      int
		wantErr     error
		wantNoError bool
	}{
		{status: 21000, wantErr: ErrInvalidReceipt},
		{status: 21002, wantErr: ErrInvalidReceipt},
		{status: 21003, wantErr: ErrInvalidReceipt},
		{status: 21004, wantErr: ErrVerificationUnavailable},
		{status: 21005, wantErr: ErrVerificationUnavailable},
		{status: 21009, wantErr: ErrVerificationUnavailable},
		{status: 21010, wantNoError: true},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": tc.status})
			}))
			defer server.Close()

			client := testClient(server.URL, server.URL)
			purchase, err := client.VerifyReceipt(context.Background(), "some-receipt")

			if tc.wantNoError {
				if err != nil {
					t.Fatalf("expected no error for status %d, got %v", tc.status, err)
				}
				if purchase != nil {
					t.Errorf("expected no purchase for status %d, got %+v", tc.status, purchase)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("status %d: expected %v, got %v", tc.status, tc.wantErr, err)
			}
		})
	}
}

func TestVerifyReceiptLapsedSubscriptionStillRecorded(t *testing.T) {
	expired := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status": 21006,
			"latest_receipt_info": []map[string]string{
				{"transaction_id": "tx-old", "product_id": "healhub.monthly", "expires_date_ms": epochMillis(expired)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "expired-receipt")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase == nil {
		t.Fatal("expected the lapsed purchase to be returned for recording")
	}
	if !purchase.ExpiresAt.Equal(expired) {
		t.Errorf("expected expiry %v, got %v", expired, purchase.ExpiresAt)
	}
}

func TestVerifyReceiptFallsBackToInApp(t *testing.T) {
	expiry := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status": 0,
			"receipt": map[string]interface{}{
				"in_app": []map[string]string{
					{"transaction_id": "tx-inapp", "product_id": "healhub.monthly", "expires_date_ms": epochMillis(expiry)},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "receipt-without-latest-info")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase == nil || purchase.TransactionID != "tx-inapp" {
		t.Fatalf("expected in_app purchase, got %+v", purchase)
	}
}

func TestVerifyReceiptNoSubscriptionEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":              0,
			"latest_receipt_info": []map[string]string{},
		})
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "receipt-without-subscriptions")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase != nil {
		t.Errorf("expected no purchase, got %+v", purchase)
	}
}

func TestVerifyReceiptSkipsEntriesWithoutExpiry(t *testing.T) {
	expiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status": 0,
			"latest_receipt_info": []map[string]string{
				{"transaction_id": "tx-consumable", "product_id": "healhub.tip", "expires_date_ms": ""},
				{"transaction_id": "tx-sub", "product_id": "healhub.monthly", "expires_date_ms": epochMillis(expiry)},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "mixed-receipt")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase == nil || purchase.TransactionID != "tx-sub" {
		t.Fatalf("expected the subscription entry, got %+v", purchase)
	}
}

func TestVerifyReceiptServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	_, err := client.VerifyReceipt(context.Background(), "some-receipt")
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
	}
}

func TestVerifyReceiptEmptyReceiptSkipsCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent for an empty receipt")
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	purchase, err := client.VerifyReceipt(context.Background(), "   ")
	if err != nil {
		t.Fatalf("VerifyReceipt returned error: %v", err)
	}
	if purchase != nil {
		t.Errorf("expected no purchase, got %+v", purchase)
	}
}

func TestVerifyReceiptMissingSharedSecret(t *testing.T) {
	client := testClient("http://127.0.0.1:0", "http://127.0.0.1:0")
	client.SharedSecret = ""

	_, err := client.VerifyReceipt(context.Background(), "some-receipt")
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
	}
}
