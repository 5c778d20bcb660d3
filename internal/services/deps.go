package services

import (
	"context"

	"debateBack/internal/models"
)

// EntitlementStore is the persistence boundary for membership documents.
// Merge semantics preserve unrelated fields; every merge stamps
// lastValidated with a server-generated timestamp.
type EntitlementStore interface {
	Get(ctx context.Context, userID string) (models.UserEntitlement, error)
	Merge(ctx context.Context, userID string, fields map[string]interface{}) error
	FindUserByAndroidToken(ctx context.Context, token string) (string, models.UserEntitlement, error)
	FindUserByAppAccountToken(ctx context.Context, token string) (string, models.UserEntitlement, error)
}

// TrialHistoryStore persists the abuse-prevention anchor. Create is
// write-once per user id; records are never removed by account deletion.
type TrialHistoryStore interface {
	Get(ctx context.Context, userID string) (models.TrialHistoryRecord, error)
	FindByIdentityHash(ctx context.Context, hash string) (models.TrialHistoryRecord, error)
	Create(ctx context.Context, rec models.TrialHistoryRecord) error
}

// AppleVerifier verifies client-submitted receipts against the App Store.
type AppleVerifier interface {
	VerifyReceipt(ctx context.Context, receipt string) (models.AppleVerifyResponse, error)
}

// GoogleVerifier performs Play publisher lookups. All methods are pure reads
// except the acknowledge calls, which Google requires after a grant.
type GoogleVerifier interface {
	VerifySubscription(ctx context.Context, subscriptionID, token string) (models.GoogleSubscription, error)
	VerifyProduct(ctx context.Context, productID, token string) (models.GoogleProduct, error)
	VerifySubscriptionV2(ctx context.Context, token string) (models.GoogleSubscriptionV2, error)
	AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error
	AcknowledgeProduct(ctx context.Context, productID, token string) error
}

// IdentityDeleter removes the auth identity record during account deletion.
type IdentityDeleter interface {
	DeleteIdentity(ctx context.Context, userID string) error
}

// UserDataPurger deletes a user's full document subtree.
type UserDataPurger interface {
	DeleteUserData(ctx context.Context, userID string) error
}
