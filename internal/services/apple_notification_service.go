package services

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"

	"debateBack/internal/models"
)

const appleJWKSURL = "https://api.storekit.itunes.apple.com/inApps/v1/jwks"

// SignatureKeySource resolves the public key for a JWS signature. Production
// uses the remotely fetched App Store key set (with x5c chain fallback);
// tests substitute a fixed key pair.
type SignatureKeySource interface {
	Key(ctx context.Context, sig jose.Signature) (interface{}, error)
}

// AppleNotificationService verifies App Store server notifications: the
// outer signedPayload and the independently signed transaction/renewal
// tokens nested inside it.
type AppleNotificationService struct {
	bundleID string
	keys     SignatureKeySource
	logger   *slog.Logger
}

func NewAppleNotificationService(bundleID string, keys SignatureKeySource, logger *slog.Logger) (*AppleNotificationService, error) {
	if keys == nil {
		return nil, errors.New("apple notifications: key source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AppleNotificationService{
		bundleID: strings.TrimSpace(bundleID),
		keys:     keys,
		logger:   logger,
	}, nil
}

// ParseNotification verifies the outer signedPayload and decodes it.
func (s *AppleNotificationService) ParseNotification(ctx context.Context, signedPayload string) (models.AppleNotificationPayload, error) {
	data, err := s.verifyJWS(ctx, signedPayload)
	if err != nil {
		return models.AppleNotificationPayload{}, err
	}
	var notif models.AppleNotificationPayload
	if err := json.Unmarshal(data, &notif); err != nil {
		return models.AppleNotificationPayload{}, fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}
	notif.Raw = signedPayload
	if s.bundleID != "" && notif.Data.BundleID != "" && notif.Data.BundleID != s.bundleID {
		s.logger.Warn("apple notification bundle mismatch", "bundle_id", notif.Data.BundleID)
		return models.AppleNotificationPayload{}, fmt.Errorf("bundle id mismatch: %s", notif.Data.BundleID)
	}
	return notif, nil
}

// DecodeTransaction verifies the nested signedTransactionInfo with the same
// key set the outer payload was verified against.
func (s *AppleNotificationService) DecodeTransaction(ctx context.Context, signedInfo string) (models.AppleTransaction, error) {
	payload, err := s.verifyJWS(ctx, signedInfo)
	if err != nil {
		return models.AppleTransaction{}, err
	}
	var txn models.AppleTransaction
	if err := json.Unmarshal(payload, &txn); err != nil {
		return models.AppleTransaction{}, fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}
	txn.Raw = signedInfo
	return txn, nil
}

// DecodeRenewalInfo verifies and decodes signedRenewalInfo.
func (s *AppleNotificationService) DecodeRenewalInfo(ctx context.Context, signedInfo string) (models.AppleRenewalInfo, error) {
	payload, err := s.verifyJWS(ctx, signedInfo)
	if err != nil {
		return models.AppleRenewalInfo{}, err
	}
	var renewal models.AppleRenewalInfo
	if err := json.Unmarshal(payload, &renewal); err != nil {
		return models.AppleRenewalInfo{}, fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}
	renewal.Raw = signedInfo
	return renewal, nil
}

func (s *AppleNotificationService) verifyJWS(ctx context.Context, token string) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty signed payload", models.ErrSignatureInvalid)
	}

	jws, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{
		jose.ES256,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}
	if len(jws.Signatures) == 0 {
		return nil, fmt.Errorf("%w: missing signature", models.ErrSignatureInvalid)
	}

	key, err := s.keys.Key(ctx, jws.Signatures[0])
	if err != nil {
		return nil, err
	}
	payload, err := jws.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}
	return payload, nil
}

// AppleKeySource resolves keys from the x5c certificate chain when present,
// falling back to the remotely fetched JWKS by key id. The key set is cached
// for 30 minutes.
type AppleKeySource struct {
	jwksURL string
	client  *http.Client

	mu         sync.Mutex
	jwks       *jose.JSONWebKeySet
	jwksExpiry time.Time
}

func NewAppleKeySource(jwksURL string, client *http.Client) *AppleKeySource {
	if jwksURL == "" {
		jwksURL = appleJWKSURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &AppleKeySource{jwksURL: jwksURL, client: client}
}

func (k *AppleKeySource) Key(ctx context.Context, sig jose.Signature) (interface{}, error) {
	if key, err := k.keyFromX5C(sig.Header); err == nil {
		return key, nil
	} else if !errors.Is(err, jose.ErrMissingX5cHeader) {
		return nil, err
	}

	kid := sig.Header.KeyID
	set, err := k.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	keys := set.Key(kid)
	if len(keys) == 0 {
		return nil, fmt.Errorf("apple jwk not found: %s", kid)
	}
	return &keys[0], nil
}

func (k *AppleKeySource) keyFromX5C(header jose.Header) (interface{}, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	opts := x509.VerifyOptions{
		Roots:       pool,
		CurrentTime: time.Now(),
	}
	chains, err := header.Certificates(opts)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 || len(chains[0]) == 0 {
		return nil, errors.New("apple jws: empty certificate chain")
	}
	leaf := chains[0][0]
	if leaf.PublicKey == nil {
		return nil, errors.New("apple jws: certificate missing public key")
	}
	return leaf.PublicKey, nil
}

func (k *AppleKeySource) fetchJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.jwks != nil && time.Until(k.jwksExpiry) > 5*time.Minute {
		return k.jwks, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("apple jwks: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, err
	}
	k.jwks = &set
	k.jwksExpiry = time.Now().Add(30 * time.Minute)
	return k.jwks, nil
}
