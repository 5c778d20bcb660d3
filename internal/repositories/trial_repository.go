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

const trialHistoryCollection = "trialHistory"

// TrialHistoryRepository stores abuse-prevention records keyed by user id.
// Documents here survive account deletion.
type TrialHistoryRepository struct {
	Client *firestore.Client
}

func (r *TrialHistoryRepository) Get(ctx context.Context, userID string) (models.TrialHistoryRecord, error) {
	snap, err := r.Client.Collection(trialHistoryCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.TrialHistoryRecord{}, models.ErrNoRecord
	}
	if err != nil {
		return models.TrialHistoryRecord{}, fmt.Errorf("firestore get trial history %s: %w", userID, err)
	}
	var rec models.TrialHistoryRecord
	if err := snap.DataTo(&rec); err != nil {
		return models.TrialHistoryRecord{}, fmt.Errorf("firestore decode trial history %s: %w", userID, err)
	}
	return rec, nil
}

func (r *TrialHistoryRepository) FindByIdentityHash(ctx context.Context, hash string) (models.TrialHistoryRecord, error) {
	if hash == "" {
		return models.TrialHistoryRecord{}, models.ErrNoRecord
	}
	iter := r.Client.Collection(trialHistoryCollection).
		Where("identityHash", "==", hash).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return models.TrialHistoryRecord{}, models.ErrNoRecord
	}
	if err != nil {
		return models.TrialHistoryRecord{}, fmt.Errorf("firestore query identityHash: %w", err)
	}
	var rec models.TrialHistoryRecord
	if err := snap.DataTo(&rec); err != nil {
		return models.TrialHistoryRecord{}, fmt.Errorf("firestore decode trial history %s: %w", snap.Ref.ID, err)
	}
	return rec, nil
}

// Create is write-once: a concurrent or repeated create for the same user id
// leaves the original record in place and reports success.
func (r *TrialHistoryRepository) Create(ctx context.Context, rec models.TrialHistoryRecord) error {
	_, err := r.Client.Collection(trialHistoryCollection).Doc(rec.UserID).Create(ctx, rec)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("firestore create trial history %s: %w", rec.UserID, err)
	}
	return nil
}
