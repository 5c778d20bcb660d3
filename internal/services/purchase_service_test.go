package services

import (
	"context"
	"testing"
	"time"

	"debateBack/internal/models"
)

type fakeEntitlementStore struct {
	docs   map[string]models.UserEntitlement
	merges []map[string]interface{}
}

func newFakeEntitlementStore() *fakeEntitlementStore {
	return &fakeEntitlementStore{docs: make(map[string]models.UserEntitlement)}
}

func (f *fakeEntitlementStore) Get(ctx context.Context, userID string) (models.UserEntitlement, error) {
	ent, ok := f.docs[userID]
	if !ok {
		return models.UserEntitlement{}, models.ErrNoRecord
	}
	return ent, nil
}

func (f *fakeEntitlementStore) Merge(ctx context.Context, userID string, fields map[string]interface{}) error {
	f.merges = append(f.merges, fields)
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

type fakeAppleVerifier struct {
	resp  models.AppleVerifyResponse
	calls int
}

func (f *fakeAppleVerifier) VerifyReceipt(ctx context.Context, receipt string) (models.AppleVerifyResponse, error) {
	f.calls++
	return f.resp, nil
}

type fakeGoogleVerifier struct {
	sub     models.GoogleSubscription
	product models.GoogleProduct
	v2      models.GoogleSubscriptionV2

	subCalls, productCalls, v2Calls int
	ackSubs, ackProducts            int
}

func (f *fakeGoogleVerifier) VerifySubscription(ctx context.Context, subscriptionID, token string) (models.GoogleSubscription, error) {
	f.subCalls++
	return f.sub, nil
}

func (f *fakeGoogleVerifier) VerifyProduct(ctx context.Context, productID, token string) (models.GoogleProduct, error) {
	f.productCalls++
	return f.product, nil
}

func (f *fakeGoogleVerifier) VerifySubscriptionV2(ctx context.Context, token string) (models.GoogleSubscriptionV2, error) {
	f.v2Calls++
	return f.v2, nil
}

func (f *fakeGoogleVerifier) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	f.ackSubs++
	return nil
}

func (f *fakeGoogleVerifier) AcknowledgeProduct(ctx context.Context, productID, token string) error {
	f.ackProducts++
	return nil
}

func newPurchaseService(store *fakeEntitlementStore, trials *fakeTrialStore, apple *fakeAppleVerifier, google *fakeGoogleVerifier) *PurchaseService {
	svc := &PurchaseService{
		Entitlements: store,
		TrialGuard:   &TrialGuardService{Repo: trials, Salt: "pepper"},
		Now:          time.Now,
	}
	if apple != nil {
		svc.Apple = apple
	}
	if google != nil {
		svc.Google = google
	}
	return svc
}

func googleTrialSub(now time.Time) models.GoogleSubscription {
	trialState := int64(2)
	renewing := true
	return models.GoogleSubscription{
		ProductID:        models.ProductMonthly,
		StartTimeMillis:  ms(now.Add(-time.Hour)),
		ExpiryTimeMillis: ms(now.Add(6 * 24 * time.Hour)),
		PaymentState:     &trialState,
		AutoRenewing:     &renewing,
	}
}

func TestValidatePurchaseFirstTrial(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeEntitlementStore()
	trials := newFakeTrialStore()
	google := &fakeGoogleVerifier{sub: googleTrialSub(now)}
	svc := newPurchaseService(store, trials, nil, google)

	ent, err := svc.ValidatePurchase(context.Background(), "u1", "a@x.com", models.PurchaseRequest{
		Platform:      models.PlatformAndroid,
		ProductID:     models.ProductMonthly,
		PurchaseToken: "tok-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ent.MembershipStatus != models.MembershipTrial {
		t.Errorf("status = %s; want trial", ent.MembershipStatus)
	}
	if !ent.IsPremium || !ent.HasUsedTrial {
		t.Errorf("ent = %+v; want premium access and trial consumed", ent)
	}
	if trials.creates != 1 {
		t.Errorf("trial records created = %d; want 1", trials.creates)
	}
	if len(store.merges) != 1 {
		t.Fatalf("merges = %d; want 1", len(store.merges))
	}
	fields := store.merges[0]
	if fields["membershipStatus"] != models.MembershipTrial {
		t.Errorf("merged status = %v", fields["membershipStatus"])
	}
	if fields["hasUsedTrial"] != true {
		t.Error("merge should set hasUsedTrial")
	}
	if fields["androidPurchaseToken"] != "tok-1" {
		t.Error("merge should store the purchase token for notification lookups")
	}
	if google.ackSubs != 1 {
		t.Errorf("subscription acknowledgements = %d; want 1", google.ackSubs)
	}
}

func TestValidatePurchaseTrialAbuseOverride(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeEntitlementStore()
	trials := newFakeTrialStore()
	google := &fakeGoogleVerifier{sub: googleTrialSub(now)}
	svc := newPurchaseService(store, trials, nil, google)
	ctx := context.Background()

	// Trial already consumed under a previous account with the same email.
	if err := svc.TrialGuard.RecordTrialUsage(ctx, "old-uid", "a@x.com", now.Add(-90*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	ent, err := svc.ValidatePurchase(ctx, "new-uid", "a@x.com", models.PurchaseRequest{
		Platform:      models.PlatformAndroid,
		ProductID:     models.ProductMonthly,
		PurchaseToken: "tok-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ent.MembershipStatus != models.MembershipPremium {
		t.Errorf("status = %s; want premium override", ent.MembershipStatus)
	}
	if ent.TrialStartDate == nil || ent.TrialEndDate == nil {
		t.Error("trial window from the store should be kept for audit")
	}
	if trials.creates != 1 {
		t.Errorf("trial records created = %d; want only the original", trials.creates)
	}
	if store.merges[0]["membershipStatus"] != models.MembershipPremium {
		t.Errorf("merged status = %v; want premium", store.merges[0]["membershipStatus"])
	}
}

func TestValidatePurchaseIdempotentRetry(t *testing.T) {
	now := time.Now().UTC()
	expiry := now.Add(20 * 24 * time.Hour)
	store := newFakeEntitlementStore()
	store.docs["u1"] = models.UserEntitlement{
		MembershipStatus:   models.MembershipPremium,
		IsPremium:          true,
		SubscriptionExpiry: &expiry,
		ProductID:          models.ProductMonthly,
	}
	trials := newFakeTrialStore()
	google := &fakeGoogleVerifier{sub: googleTrialSub(now)}
	svc := newPurchaseService(store, trials, nil, google)

	ent, err := svc.ValidatePurchase(context.Background(), "u1", "a@x.com", models.PurchaseRequest{
		Platform:      models.PlatformAndroid,
		ProductID:     models.ProductMonthly,
		PurchaseToken: "tok-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ent.MembershipStatus != models.MembershipPremium {
		t.Errorf("status = %s; want cached premium", ent.MembershipStatus)
	}
	if google.subCalls != 0 {
		t.Errorf("verifier calls = %d; retry must not hit the store", google.subCalls)
	}
	if trials.creates != 0 {
		t.Errorf("trial records created = %d; retry must not touch history", trials.creates)
	}
	if len(store.merges) != 0 {
		t.Errorf("merges = %d; retry must not write", len(store.merges))
	}
}

func TestValidatePurchaseExpiredDocRevalidates(t *testing.T) {
	now := time.Now().UTC()
	expiry := now.Add(-24 * time.Hour)
	store := newFakeEntitlementStore()
	store.docs["u1"] = models.UserEntitlement{
		MembershipStatus:   models.MembershipPremium,
		SubscriptionExpiry: &expiry,
	}
	paidState := int64(1)
	renewing := true
	google := &fakeGoogleVerifier{sub: models.GoogleSubscription{
		ProductID:        models.ProductMonthly,
		ExpiryTimeMillis: ms(now.Add(30 * 24 * time.Hour)),
		PaymentState:     &paidState,
		AutoRenewing:     &renewing,
	}}
	svc := newPurchaseService(store, newFakeTrialStore(), nil, google)

	ent, err := svc.ValidatePurchase(context.Background(), "u1", "a@x.com", models.PurchaseRequest{
		Platform:      models.PlatformAndroid,
		ProductID:     models.ProductMonthly,
		PurchaseToken: "tok-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if google.subCalls != 1 {
		t.Errorf("verifier calls = %d; expired doc must revalidate", google.subCalls)
	}
	if ent.MembershipStatus != models.MembershipPremium {
		t.Errorf("status = %s; want premium after renewal", ent.MembershipStatus)
	}
}

func TestValidatePurchaseLifetime(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeEntitlementStore()
	apple := &fakeAppleVerifier{resp: models.AppleVerifyResponse{
		Status: 0,
		LatestReceiptInfo: []models.AppleReceiptItem{
			{ProductID: models.ProductLifetime, TransactionID: "t1", PurchaseDateMS: ms(now)},
		},
	}}
	svc := newPurchaseService(store, newFakeTrialStore(), apple, nil)

	ent, err := svc.ValidatePurchase(context.Background(), "u1", "a@x.com", models.PurchaseRequest{
		Platform:  models.PlatformIOS,
		ProductID: models.ProductLifetime,
		Receipt:   "receipt",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ent.IsLifetime || ent.MembershipStatus != models.MembershipPremium {
		t.Errorf("ent = %+v; want lifetime premium", ent)
	}
	if ent.SubscriptionExpiry != nil {
		t.Error("lifetime grant must not carry an expiry")
	}
	fields := store.merges[0]
	if expiry, ok := fields["subscriptionExpiry"]; !ok || expiry != nil {
		t.Errorf("merged expiry = %v; want explicit nil", expiry)
	}
	if fields["autoRenewing"] != false {
		t.Error("lifetime grant must not auto-renew")
	}
}

func TestValidatePurchaseRejectsBadInput(t *testing.T) {
	svc := newPurchaseService(newFakeEntitlementStore(), newFakeTrialStore(), nil, &fakeGoogleVerifier{})

	_, err := svc.ValidatePurchase(context.Background(), "", "", models.PurchaseRequest{
		Platform: models.PlatformAndroid, ProductID: models.ProductMonthly, PurchaseToken: "tok",
	})
	if models.AsAPIError(err).Code != models.CodeUnauthenticated {
		t.Errorf("missing user: %v; want unauthenticated", err)
	}

	for _, req := range []models.PurchaseRequest{
		{Platform: "windows", ProductID: models.ProductMonthly},
		{Platform: models.PlatformIOS, ProductID: models.ProductMonthly},     // no receipt
		{Platform: models.PlatformAndroid, ProductID: models.ProductMonthly}, // no token
		{Platform: models.PlatformAndroid, PurchaseToken: "tok"},             // no product
	} {
		if _, err := svc.ValidatePurchase(context.Background(), "u1", "", req); models.AsAPIError(err).Code != models.CodeInvalidArgument {
			t.Errorf("req %+v: %v; want invalid-argument", req, err)
		}
	}
}

func TestValidatePurchaseUnconfiguredPlatform(t *testing.T) {
	svc := newPurchaseService(newFakeEntitlementStore(), newFakeTrialStore(), nil, nil)

	_, err := svc.ValidatePurchase(context.Background(), "u1", "", models.PurchaseRequest{
		Platform: models.PlatformIOS, ProductID: models.ProductMonthly, Receipt: "r",
	})
	if models.AsAPIError(err).Code != models.CodeFailedPrecondition {
		t.Errorf("err = %v; want failed-precondition", err)
	}
}

func TestGetEntitlementDefaultsToDemo(t *testing.T) {
	svc := newPurchaseService(newFakeEntitlementStore(), newFakeTrialStore(), nil, nil)

	ent, err := svc.GetEntitlement(context.Background(), "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if ent.MembershipStatus != models.MembershipDemo || ent.IsPremium {
		t.Errorf("ent = %+v; want demo", ent)
	}
}
