package services

import (
	"context"
	"log"

	"debateBack/internal/models"
)

// AccountService deletes a user's account: the document subtree first, then
// the auth identity. The trial history collection is deliberately left
// untouched so a recreated account cannot claim a second free trial.
type AccountService struct {
	Data UserDataPurger
	Auth IdentityDeleter
}

func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return models.Unauthenticated("authentication required")
	}

	if err := s.Data.DeleteUserData(ctx, userID); err != nil {
		log.Printf("[ACCOUNT] purge user data user=%s err=%v", userID, err)
		return models.Internal("failed to delete account data")
	}

	// Identity goes last: if the purge fails above, the user can retry.
	if err := s.Auth.DeleteIdentity(ctx, userID); err != nil {
		log.Printf("[ACCOUNT] delete identity user=%s err=%v", userID, err)
		return models.Internal("failed to delete account")
	}
	return nil
}
