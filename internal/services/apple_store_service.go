package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"debateBack/internal/models"
)

const (
	appleVerifyProdURL    = "https://buy.itunes.apple.com/verifyReceipt"
	appleVerifySandboxURL = "https://sandbox.itunes.apple.com/verifyReceipt"

	// Apple's "sandbox receipt sent to production" sentinel.
	appleStatusSandboxReceipt = 21007
)

type AppleStoreConfig struct {
	SharedSecret string

	// Optional endpoint overrides, used by tests.
	VerifyURL        string
	SandboxVerifyURL string

	HTTPClient *http.Client
}

// AppleStoreService submits client receipts to Apple's verifyReceipt
// endpoint. A receipt rejected by production with the sandbox sentinel is
// retried against sandbox exactly once; any other non-zero status is final.
type AppleStoreService struct {
	sharedSecret string
	verifyURL    string
	sandboxURL   string
	client       *http.Client
}

func NewAppleStoreService(cfg AppleStoreConfig) (*AppleStoreService, error) {
	if strings.TrimSpace(cfg.SharedSecret) == "" {
		return nil, fmt.Errorf("apple store: shared secret is required")
	}
	verifyURL := cfg.VerifyURL
	if verifyURL == "" {
		verifyURL = appleVerifyProdURL
	}
	sandboxURL := cfg.SandboxVerifyURL
	if sandboxURL == "" {
		sandboxURL = appleVerifySandboxURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &AppleStoreService{
		sharedSecret: strings.TrimSpace(cfg.SharedSecret),
		verifyURL:    verifyURL,
		sandboxURL:   sandboxURL,
		client:       client,
	}, nil
}

// VerifyReceipt posts the receipt to production and, only for the sandbox
// sentinel status, retries once against the sandbox endpoint with the same
// payload. The sandbox result is returned in that case, never the sentinel.
func (s *AppleStoreService) VerifyReceipt(ctx context.Context, receipt string) (models.AppleVerifyResponse, error) {
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return models.AppleVerifyResponse{}, fmt.Errorf("receipt is required")
	}

	resp, err := s.verifyOnce(ctx, s.verifyURL, receipt)
	if err != nil {
		return models.AppleVerifyResponse{}, err
	}
	if resp.Status == appleStatusSandboxReceipt {
		resp, err = s.verifyOnce(ctx, s.sandboxURL, receipt)
		if err != nil {
			return models.AppleVerifyResponse{}, err
		}
	}
	if resp.Status != 0 {
		return models.AppleVerifyResponse{}, fmt.Errorf("apple verifyReceipt: status %d", resp.Status)
	}
	return resp, nil
}

func (s *AppleStoreService) verifyOnce(ctx context.Context, url, receipt string) (models.AppleVerifyResponse, error) {
	payload := map[string]interface{}{
		"receipt-data":             receipt,
		"password":                 s.sharedSecret,
		"exclude-old-transactions": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.AppleVerifyResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.AppleVerifyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return models.AppleVerifyResponse{}, fmt.Errorf("apple verifyReceipt: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		raw, _ := io.ReadAll(httpResp.Body)
		return models.AppleVerifyResponse{}, fmt.Errorf("apple verifyReceipt: %s (%s)", httpResp.Status, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return models.AppleVerifyResponse{}, err
	}
	var resp models.AppleVerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.AppleVerifyResponse{}, fmt.Errorf("apple verifyReceipt: decode: %w", err)
	}
	resp.Raw = string(raw)
	return resp, nil
}
