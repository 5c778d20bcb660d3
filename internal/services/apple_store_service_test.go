package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newVerifyServer(t *testing.T, calls *int, response map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["password"] != "secret" {
			t.Errorf("password = %v; want shared secret", body["password"])
		}
		json.NewEncoder(w).Encode(response)
	}))
}

func TestVerifyReceiptProduction(t *testing.T) {
	prodCalls := 0
	prod := newVerifyServer(t, &prodCalls, map[string]interface{}{
		"status":      0,
		"environment": "Production",
	})
	defer prod.Close()

	svc, err := NewAppleStoreService(AppleStoreConfig{
		SharedSecret: "secret",
		VerifyURL:    prod.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.VerifyReceipt(context.Background(), "receipt-data")
	if err != nil {
		t.Fatal(err)
	}
	if prodCalls != 1 {
		t.Errorf("production calls = %d; want 1", prodCalls)
	}
	if resp.Environment != "Production" {
		t.Errorf("environment = %s; want Production", resp.Environment)
	}
}

func TestVerifyReceiptSandboxFallback(t *testing.T) {
	prodCalls, sandboxCalls := 0, 0
	prod := newVerifyServer(t, &prodCalls, map[string]interface{}{"status": 21007})
	defer prod.Close()
	sandbox := newVerifyServer(t, &sandboxCalls, map[string]interface{}{
		"status":      0,
		"environment": "Sandbox",
	})
	defer sandbox.Close()

	svc, err := NewAppleStoreService(AppleStoreConfig{
		SharedSecret:     "secret",
		VerifyURL:        prod.URL,
		SandboxVerifyURL: sandbox.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.VerifyReceipt(context.Background(), "receipt-data")
	if err != nil {
		t.Fatal(err)
	}
	if prodCalls != 1 || sandboxCalls != 1 {
		t.Errorf("calls = prod %d, sandbox %d; want exactly one each", prodCalls, sandboxCalls)
	}
	if resp.Environment != "Sandbox" {
		t.Errorf("environment = %s; want Sandbox", resp.Environment)
	}
}

func TestVerifyReceiptSandboxSentinelFromSandboxFails(t *testing.T) {
	// A sandbox endpoint answering with the sentinel again must not loop.
	prodCalls, sandboxCalls := 0, 0
	prod := newVerifyServer(t, &prodCalls, map[string]interface{}{"status": 21007})
	defer prod.Close()
	sandbox := newVerifyServer(t, &sandboxCalls, map[string]interface{}{"status": 21007})
	defer sandbox.Close()

	svc, err := NewAppleStoreService(AppleStoreConfig{
		SharedSecret:     "secret",
		VerifyURL:        prod.URL,
		SandboxVerifyURL: sandbox.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.VerifyReceipt(context.Background(), "receipt-data"); err == nil {
		t.Fatal("expected error")
	}
	if sandboxCalls != 1 {
		t.Errorf("sandbox calls = %d; want 1", sandboxCalls)
	}
}

func TestVerifyReceiptNonZeroStatus(t *testing.T) {
	calls := 0
	prod := newVerifyServer(t, &calls, map[string]interface{}{"status": 21003})
	defer prod.Close()

	svc, err := NewAppleStoreService(AppleStoreConfig{
		SharedSecret: "secret",
		VerifyURL:    prod.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.VerifyReceipt(context.Background(), "receipt-data")
	if err == nil || !strings.Contains(err.Error(), "21003") {
		t.Fatalf("err = %v; want status 21003 failure", err)
	}
}

func TestNewAppleStoreServiceRequiresSecret(t *testing.T) {
	if _, err := NewAppleStoreService(AppleStoreConfig{}); err == nil {
		t.Fatal("expected error for missing shared secret")
	}
}
