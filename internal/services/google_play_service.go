package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"

	"debateBack/internal/models"
)

type GooglePlayConfig struct {
	PackageName        string
	ServiceAccountJSON string
}

// GooglePlayService performs publisher API lookups. The authenticated client
// is constructed per call, so the service holds no shared state and is
// trivially parallel-safe.
type GooglePlayService struct {
	cfg GooglePlayConfig
}

func NewGooglePlayService(cfg GooglePlayConfig) (*GooglePlayService, error) {
	cfg.PackageName = strings.TrimSpace(cfg.PackageName)
	if cfg.PackageName == "" {
		return nil, errors.New("GOOGLE_PLAY_PACKAGE_NAME is empty")
	}
	if strings.TrimSpace(cfg.ServiceAccountJSON) == "" {
		return nil, errors.New("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON is empty")
	}
	return &GooglePlayService{cfg: cfg}, nil
}

func (s *GooglePlayService) service(ctx context.Context) (*androidpublisher.Service, error) {
	svc, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON([]byte(s.cfg.ServiceAccountJSON)),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("androidpublisher.NewService: %w", err)
	}
	return svc, nil
}

func (s *GooglePlayService) VerifySubscription(ctx context.Context, subscriptionID, token string) (models.GoogleSubscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	token = strings.TrimSpace(token)
	if subscriptionID == "" || token == "" {
		return models.GoogleSubscription{}, errors.New("subscription_id and purchase_token are required")
	}

	svc, err := s.service(ctx)
	if err != nil {
		return models.GoogleSubscription{}, err
	}
	resp, err := svc.Purchases.Subscriptions.Get(s.cfg.PackageName, subscriptionID, token).
		Context(ctx).
		Do()
	if err != nil {
		return models.GoogleSubscription{}, fmt.Errorf("google subscriptions.get: %w", err)
	}

	raw, _ := json.Marshal(resp)

	sub := models.GoogleSubscription{
		ProductID:        subscriptionID,
		PurchaseToken:    token,
		OrderID:          resp.OrderId,
		StartTimeMillis:  strconv.FormatInt(resp.StartTimeMillis, 10),
		ExpiryTimeMillis: strconv.FormatInt(resp.ExpiryTimeMillis, 10),
		PaymentState:     resp.PaymentState,
		CancelReason:     resp.CancelReason,
		Acknowledged:     resp.AcknowledgementState == 1,
		Raw:              string(raw),
	}
	autoRenewing := resp.AutoRenewing
	sub.AutoRenewing = &autoRenewing
	return sub, nil
}

func (s *GooglePlayService) VerifyProduct(ctx context.Context, productID, token string) (models.GoogleProduct, error) {
	productID = strings.TrimSpace(productID)
	token = strings.TrimSpace(token)
	if productID == "" || token == "" {
		return models.GoogleProduct{}, errors.New("product_id and purchase_token are required")
	}

	svc, err := s.service(ctx)
	if err != nil {
		return models.GoogleProduct{}, err
	}
	resp, err := svc.Purchases.Products.Get(s.cfg.PackageName, productID, token).
		Context(ctx).
		Do()
	if err != nil {
		return models.GoogleProduct{}, fmt.Errorf("google products.get: %w", err)
	}

	raw, _ := json.Marshal(resp)

	return models.GoogleProduct{
		ProductID:          productID,
		PurchaseToken:      token,
		OrderID:            resp.OrderId,
		PurchaseState:      resp.PurchaseState,
		PurchaseTimeMillis: strconv.FormatInt(resp.PurchaseTimeMillis, 10),
		Acknowledged:       resp.AcknowledgementState == 1,
		Consumed:           resp.ConsumptionState == 1,
		Raw:                string(raw),
	}, nil
}

// VerifySubscriptionV2 is the richer token-only lookup. Used by notification
// ingestion to confirm terminal states before downgrading a user.
func (s *GooglePlayService) VerifySubscriptionV2(ctx context.Context, token string) (models.GoogleSubscriptionV2, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.GoogleSubscriptionV2{}, errors.New("purchase_token is required")
	}

	svc, err := s.service(ctx)
	if err != nil {
		return models.GoogleSubscriptionV2{}, err
	}
	resp, err := svc.Purchases.Subscriptionsv2.Get(s.cfg.PackageName, token).
		Context(ctx).
		Do()
	if err != nil {
		return models.GoogleSubscriptionV2{}, fmt.Errorf("google subscriptionsv2.get: %w", err)
	}

	raw, _ := json.Marshal(resp)

	v2 := models.GoogleSubscriptionV2{
		SubscriptionState: resp.SubscriptionState,
		Raw:               string(raw),
	}
	for _, line := range resp.LineItems {
		v2.LineItems = append(v2.LineItems, models.GoogleSubscriptionV2Line{
			ProductID:  line.ProductId,
			ExpiryTime: line.ExpiryTime,
		})
	}
	return v2, nil
}

func (s *GooglePlayService) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	token = strings.TrimSpace(token)
	if subscriptionID == "" || token == "" {
		return errors.New("subscription_id and purchase_token are required")
	}

	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	req := &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}
	if err := svc.Purchases.Subscriptions.Acknowledge(s.cfg.PackageName, subscriptionID, token, req).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google subscriptions.acknowledge: %w", err)
	}
	return nil
}

func (s *GooglePlayService) AcknowledgeProduct(ctx context.Context, productID, token string) error {
	productID = strings.TrimSpace(productID)
	token = strings.TrimSpace(token)
	if productID == "" || token == "" {
		return errors.New("product_id and purchase_token are required")
	}

	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	req := &androidpublisher.ProductPurchasesAcknowledgeRequest{}
	if err := svc.Purchases.Products.Acknowledge(s.cfg.PackageName, productID, token, req).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google products.acknowledge: %w", err)
	}
	return nil
}
