package handlers

import (
	"context"

	"debateBack/internal/models"
)

type fakeEntitlementStore struct {
	docs   map[string]models.UserEntitlement
	merges map[string][]map[string]interface{}
}

func newFakeEntitlementStore() *fakeEntitlementStore {
	return &fakeEntitlementStore{
		docs:   make(map[string]models.UserEntitlement),
		merges: make(map[string][]map[string]interface{}),
	}
}

func (f *fakeEntitlementStore) Get(ctx context.Context, userID string) (models.UserEntitlement, error) {
	ent, ok := f.docs[userID]
	if !ok {
		return models.UserEntitlement{}, models.ErrNoRecord
	}
	return ent, nil
}

func (f *fakeEntitlementStore) Merge(ctx context.Context, userID string, fields map[string]interface{}) error {
	f.merges[userID] = append(f.merges[userID], fields)
	return nil
}

func (f *fakeEntitlementStore) FindUserByAndroidToken(ctx context.Context, token string) (string, models.UserEntitlement, error) {
	for id, ent := range f.docs {
		if ent.AndroidPurchaseToken == token {
			return id, ent, nil
		}
	}
	return "", models.UserEntitlement{}, models.ErrNoRecord
}

func (f *fakeEntitlementStore) FindUserByAppAccountToken(ctx context.Context, token string) (string, models.UserEntitlement, error) {
	for id, ent := range f.docs {
		if ent.AppAccountToken == token {
			return id, ent, nil
		}
	}
	return "", models.UserEntitlement{}, models.ErrNoRecord
}

type fakeGoogleVerifier struct {
	sub    models.GoogleSubscription
	subErr error
	v2     models.GoogleSubscriptionV2
	v2Err  error

	subCalls, v2Calls int
}

func (f *fakeGoogleVerifier) VerifySubscription(ctx context.Context, subscriptionID, token string) (models.GoogleSubscription, error) {
	f.subCalls++
	return f.sub, f.subErr
}

func (f *fakeGoogleVerifier) VerifyProduct(ctx context.Context, productID, token string) (models.GoogleProduct, error) {
	return models.GoogleProduct{}, nil
}

func (f *fakeGoogleVerifier) VerifySubscriptionV2(ctx context.Context, token string) (models.GoogleSubscriptionV2, error) {
	f.v2Calls++
	return f.v2, f.v2Err
}

func (f *fakeGoogleVerifier) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	return nil
}

func (f *fakeGoogleVerifier) AcknowledgeProduct(ctx context.Context, productID, token string) error {
	return nil
}
