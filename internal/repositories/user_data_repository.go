package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/iterator"
)

const deleteBatchSize = 500

// UserDataRepository purges a user's document subtree. Firestore has no
// server-side recursive delete, so subcollections are enumerated and their
// documents deleted in batches before the root document goes.
type UserDataRepository struct {
	Client *firestore.Client
}

func (r *UserDataRepository) DeleteUserData(ctx context.Context, userID string) error {
	doc := r.Client.Collection(usersCollection).Doc(userID)

	cols := doc.Collections(ctx)
	for {
		col, err := cols.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore list subcollections %s: %w", userID, err)
		}
		if err := r.deleteCollection(ctx, col); err != nil {
			return err
		}
	}

	if _, err := doc.Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete user %s: %w", userID, err)
	}
	return nil
}

func (r *UserDataRepository) deleteCollection(ctx context.Context, col *firestore.CollectionRef) error {
	bw := r.Client.BulkWriter(ctx)
	defer bw.End()

	refs := col.DocumentRefs(ctx)
	pending := 0
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore list documents %s: %w", col.Path, err)
		}
		if _, err := bw.Delete(ref); err != nil {
			return fmt.Errorf("firestore bulk delete %s: %w", ref.Path, err)
		}
		pending++
		if pending >= deleteBatchSize {
			bw.Flush()
			pending = 0
		}
	}
	bw.Flush()
	return nil
}

// FirebaseIdentityRepository removes auth identities. An already-deleted
// identity counts as success so account deletion stays retryable.
type FirebaseIdentityRepository struct {
	Auth *auth.Client
}

func NewFirebaseIdentityRepository(ctx context.Context, app *firebase.App) (*FirebaseIdentityRepository, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &FirebaseIdentityRepository{Auth: client}, nil
}

func (r *FirebaseIdentityRepository) DeleteIdentity(ctx context.Context, userID string) error {
	err := r.Auth.DeleteUser(ctx, userID)
	if err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("firebase delete user %s: %w", userID, err)
	}
	return nil
}
