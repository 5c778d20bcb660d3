package services

import (
	"context"
	"log"
	"time"

	"debateBack/internal/models"
)

// PurchaseService is the synchronous entry point: it turns a client-submitted
// receipt or purchase token into the user's authoritative entitlement.
type PurchaseService struct {
	Apple        AppleVerifier
	Google       GoogleVerifier
	Entitlements EntitlementStore
	TrialGuard   *TrialGuardService

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *PurchaseService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ValidatePurchase verifies the purchase with the owning store, resolves the
// entitlement and merges it. Retried calls while the stored entitlement is
// already active short-circuit without any store call or trial-history write.
func (s *PurchaseService) ValidatePurchase(ctx context.Context, userID, email string, req models.PurchaseRequest) (models.UserEntitlement, error) {
	if userID == "" {
		return models.UserEntitlement{}, models.Unauthenticated("authentication required")
	}
	if err := req.Validate(); err != nil {
		return models.UserEntitlement{}, err
	}

	now := s.now()

	existing, err := s.Entitlements.Get(ctx, userID)
	switch {
	case err == nil:
		if cached, ok := s.shortCircuit(existing, now); ok {
			return cached, nil
		}
	case err == models.ErrNoRecord:
		// First validation for this user.
	default:
		log.Printf("[PURCHASE] load entitlement user=%s err=%v", userID, err)
		return models.UserEntitlement{}, models.Internal("failed to load entitlement")
	}

	data, err := s.verify(ctx, req)
	if err != nil {
		return models.UserEntitlement{}, err
	}

	facts, err := ResolvePurchaseFacts(req.Platform, req.ProductID, data)
	if err != nil {
		return models.UserEntitlement{}, err
	}

	used, err := s.TrialGuard.HasUsedTrial(ctx, userID, email)
	if err != nil {
		log.Printf("[PURCHASE] trial history lookup user=%s err=%v", userID, err)
		return models.UserEntitlement{}, models.Internal("failed to check trial history")
	}

	status := DeriveStatus(facts, now)
	if status == models.MembershipTrial && used {
		// The store already granted the trial; rejecting now would strand a
		// charged transaction. Persist premium, keep the trial window for
		// audit, and never write a second history record.
		status = models.MembershipPremium
	} else if status == models.MembershipTrial {
		firstTrial := now
		if facts.TrialStart != nil {
			firstTrial = *facts.TrialStart
		}
		if err := s.TrialGuard.RecordTrialUsage(ctx, userID, email, firstTrial); err != nil {
			log.Printf("[PURCHASE] record trial usage user=%s err=%v", userID, err)
			return models.UserEntitlement{}, models.Internal("failed to record trial usage")
		}
		used = true
	}

	fields := EntitlementFields(facts, status)
	if used {
		fields["hasUsedTrial"] = true
	}
	if req.Platform == models.PlatformAndroid {
		fields["androidPurchaseToken"] = req.PurchaseToken
	}
	if req.AppAccountToken != "" {
		fields["appAccountToken"] = req.AppAccountToken
	}

	if err := s.Entitlements.Merge(ctx, userID, fields); err != nil {
		log.Printf("[PURCHASE] merge entitlement user=%s err=%v", userID, err)
		return models.UserEntitlement{}, models.Internal("failed to store entitlement")
	}

	s.acknowledge(ctx, req)

	return s.buildResult(existing, facts, status, used, req, now), nil
}

// GetEntitlement returns the caller's current entitlement document.
func (s *PurchaseService) GetEntitlement(ctx context.Context, userID string) (models.UserEntitlement, error) {
	if userID == "" {
		return models.UserEntitlement{}, models.Unauthenticated("authentication required")
	}
	ent, err := s.Entitlements.Get(ctx, userID)
	if err == models.ErrNoRecord {
		return models.UserEntitlement{MembershipStatus: models.MembershipDemo}, nil
	}
	if err != nil {
		log.Printf("[PURCHASE] load entitlement user=%s err=%v", userID, err)
		return models.UserEntitlement{}, models.Internal("failed to load entitlement")
	}
	return ent, nil
}

// shortCircuit returns the stored entitlement when it is already known-valid,
// making retried client calls side-effect-free.
func (s *PurchaseService) shortCircuit(ent models.UserEntitlement, now time.Time) (models.UserEntitlement, bool) {
	if ent.MembershipStatus != models.MembershipTrial && ent.MembershipStatus != models.MembershipPremium {
		return models.UserEntitlement{}, false
	}
	if !ent.Active(now) {
		return models.UserEntitlement{}, false
	}
	return ent, true
}

func (s *PurchaseService) verify(ctx context.Context, req models.PurchaseRequest) (models.StoreData, error) {
	switch req.Platform {
	case models.PlatformIOS:
		if s.Apple == nil {
			return models.StoreData{}, models.FailedPrecondition("apple verification is not configured")
		}
		receipt, err := s.Apple.VerifyReceipt(ctx, req.Receipt)
		if err != nil {
			log.Printf("[PURCHASE] apple verify product=%s err=%v", req.ProductID, err)
			return models.StoreData{}, models.Internal("purchase verification failed")
		}
		return models.StoreData{AppleReceipt: &receipt}, nil
	case models.PlatformAndroid:
		if s.Google == nil {
			return models.StoreData{}, models.FailedPrecondition("google verification is not configured")
		}
		if models.IsLifetimeProduct(req.ProductID) {
			product, err := s.Google.VerifyProduct(ctx, req.ProductID, req.PurchaseToken)
			if err != nil {
				log.Printf("[PURCHASE] google product verify product=%s err=%v", req.ProductID, err)
				return models.StoreData{}, models.Internal("purchase verification failed")
			}
			return models.StoreData{GoogleProduct: &product}, nil
		}
		sub, err := s.Google.VerifySubscription(ctx, req.ProductID, req.PurchaseToken)
		if err != nil {
			log.Printf("[PURCHASE] google subscription verify product=%s err=%v", req.ProductID, err)
			return models.StoreData{}, models.Internal("purchase verification failed")
		}
		return models.StoreData{GoogleSubscription: &sub}, nil
	default:
		return models.StoreData{}, models.InvalidArgument("unsupported platform: " + req.Platform)
	}
}

// acknowledge tells Google the grant was applied. Failures are swallowed:
// Google redelivers unacknowledged purchases, so this is self-healing.
func (s *PurchaseService) acknowledge(ctx context.Context, req models.PurchaseRequest) {
	if req.Platform != models.PlatformAndroid || s.Google == nil {
		return
	}
	var err error
	if models.IsLifetimeProduct(req.ProductID) {
		err = s.Google.AcknowledgeProduct(ctx, req.ProductID, req.PurchaseToken)
	} else {
		err = s.Google.AcknowledgeSubscription(ctx, req.ProductID, req.PurchaseToken)
	}
	if err != nil {
		log.Printf("[PURCHASE] acknowledge product=%s err=%v", req.ProductID, err)
	}
}

func (s *PurchaseService) buildResult(existing models.UserEntitlement, facts models.PurchaseFacts, status string, used bool, req models.PurchaseRequest, now time.Time) models.UserEntitlement {
	result := existing
	result.MembershipStatus = status
	result.IsPremium = status == models.MembershipTrial || status == models.MembershipPremium
	result.IsLifetime = facts.IsLifetime
	result.AutoRenewing = facts.AutoRenewing
	result.ProductID = facts.ProductID
	result.LastValidated = now
	if facts.IsLifetime {
		result.SubscriptionExpiry = nil
	} else if facts.ExpiresAt != nil {
		result.SubscriptionExpiry = facts.ExpiresAt
	}
	if facts.TrialStart != nil {
		result.TrialStartDate = facts.TrialStart
	}
	if facts.TrialEnd != nil {
		result.TrialEndDate = facts.TrialEnd
	}
	if used {
		result.HasUsedTrial = true
	}
	if req.Platform == models.PlatformAndroid {
		result.AndroidPurchaseToken = req.PurchaseToken
	}
	if req.AppAccountToken != "" {
		result.AppAccountToken = req.AppAccountToken
	}
	return result
}

// EntitlementFields builds the merge payload shared by the synchronous flow
// and the notification ingestors. Fields that are absent from the facts are
// left out so the merge preserves previously stored values.
func EntitlementFields(facts models.PurchaseFacts, status string) map[string]interface{} {
	fields := map[string]interface{}{
		"membershipStatus": status,
		"isPremium":        status == models.MembershipTrial || status == models.MembershipPremium,
		"isLifetime":       facts.IsLifetime,
		"autoRenewing":     facts.AutoRenewing,
		"productId":        facts.ProductID,
	}
	if facts.IsLifetime {
		fields["subscriptionExpiry"] = nil
	} else if facts.ExpiresAt != nil {
		fields["subscriptionExpiry"] = *facts.ExpiresAt
	}
	if facts.TrialStart != nil {
		fields["trialStartDate"] = *facts.TrialStart
	}
	if facts.TrialEnd != nil {
		fields["trialEndDate"] = *facts.TrialEnd
	}
	return fields
}
