package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"debateBack/internal/models"
)

// TrialGuardService decides whether a user has already consumed the free
// trial. Lookups are dual-keyed: by user id and by a salted hash of the
// normalized account identity, so the record survives "delete account,
// recreate with a new id, same email".
type TrialGuardService struct {
	Repo TrialHistoryStore
	Salt string
}

// IdentityHash returns the hex HMAC-SHA256 of the lowercased, trimmed
// identity, or empty when no identity is available.
func (s *TrialGuardService) IdentityHash(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(s.Salt))
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *TrialGuardService) HasUsedTrial(ctx context.Context, userID, identity string) (bool, error) {
	if _, err := s.Repo.Get(ctx, userID); err == nil {
		return true, nil
	} else if !errors.Is(err, models.ErrNoRecord) {
		return false, err
	}

	hash := s.IdentityHash(identity)
	if hash == "" {
		return false, nil
	}
	if _, err := s.Repo.FindByIdentityHash(ctx, hash); err == nil {
		return true, nil
	} else if !errors.Is(err, models.ErrNoRecord) {
		return false, err
	}
	return false, nil
}

// RecordTrialUsage writes the abuse-prevention record. Callers invoke this
// only when granting a first trial; the record is write-once per user id.
func (s *TrialGuardService) RecordTrialUsage(ctx context.Context, userID, identity string, firstTrial time.Time) error {
	rec := models.TrialHistoryRecord{
		UserID:         userID,
		IdentityHash:   s.IdentityHash(identity),
		FirstTrialDate: firstTrial,
		CreatedAt:      time.Now().UTC(),
	}
	return s.Repo.Create(ctx, rec)
}
