package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"debateBack/internal/models"
)

const usersCollection = "users"

type EntitlementRepository struct {
	Client *firestore.Client
}

func (r *EntitlementRepository) Get(ctx context.Context, userID string) (models.UserEntitlement, error) {
	snap, err := r.Client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.UserEntitlement{}, models.ErrNoRecord
	}
	if err != nil {
		return models.UserEntitlement{}, fmt.Errorf("firestore get user %s: %w", userID, err)
	}
	var ent models.UserEntitlement
	if err := snap.DataTo(&ent); err != nil {
		return models.UserEntitlement{}, fmt.Errorf("firestore decode user %s: %w", userID, err)
	}
	return ent, nil
}

// Merge writes only the given fields, preserving everything else in the
// document. Every merge stamps lastValidated server-side.
func (r *EntitlementRepository) Merge(ctx context.Context, userID string, fields map[string]interface{}) error {
	fields["lastValidated"] = firestore.ServerTimestamp
	_, err := r.Client.Collection(usersCollection).Doc(userID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore merge user %s: %w", userID, err)
	}
	return nil
}

func (r *EntitlementRepository) FindUserByAndroidToken(ctx context.Context, token string) (string, models.UserEntitlement, error) {
	return r.findOne(ctx, "androidPurchaseToken", token)
}

func (r *EntitlementRepository) FindUserByAppAccountToken(ctx context.Context, token string) (string, models.UserEntitlement, error) {
	return r.findOne(ctx, "appAccountToken", token)
}

func (r *EntitlementRepository) findOne(ctx context.Context, field, value string) (string, models.UserEntitlement, error) {
	if value == "" {
		return "", models.UserEntitlement{}, models.ErrNoRecord
	}
	iter := r.Client.Collection(usersCollection).
		Where(field, "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return "", models.UserEntitlement{}, models.ErrNoRecord
	}
	if err != nil {
		return "", models.UserEntitlement{}, fmt.Errorf("firestore query %s: %w", field, err)
	}
	var ent models.UserEntitlement
	if err := snap.DataTo(&ent); err != nil {
		return "", models.UserEntitlement{}, fmt.Errorf("firestore decode %s: %w", snap.Ref.ID, err)
	}
	return snap.Ref.ID, ent, nil
}
