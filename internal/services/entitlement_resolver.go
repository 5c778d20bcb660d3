package services

import (
	"fmt"
	"strconv"
	"time"

	"debateBack/internal/models"
)

// ResolvePurchaseFacts derives the normalized purchase facts for one product
// from verified store data. Pure computation: no network, no clock — expiry
// comparisons against "now" happen in DeriveStatus.
func ResolvePurchaseFacts(platform, productID string, data models.StoreData) (models.PurchaseFacts, error) {
	if models.IsLifetimeProduct(productID) {
		return resolveLifetime(platform, productID, data)
	}
	switch platform {
	case models.PlatformIOS:
		if data.AppleReceipt == nil {
			return models.PurchaseFacts{}, fmt.Errorf("resolver: apple receipt data missing")
		}
		return resolveAppleSubscription(productID, data.AppleReceipt)
	case models.PlatformAndroid:
		if data.GoogleSubscription == nil {
			return models.PurchaseFacts{}, fmt.Errorf("resolver: google subscription data missing")
		}
		return resolveGoogleSubscription(productID, data.GoogleSubscription)
	default:
		return models.PurchaseFacts{}, models.InvalidArgument(fmt.Sprintf("unsupported platform: %s", platform))
	}
}

// DeriveStatus applies the membership state machine to resolved facts,
// before any trial-abuse policy. Expired subscriptions with auto-renew still
// on keep premium as an optimistic grace, awaiting renewal confirmation.
func DeriveStatus(facts models.PurchaseFacts, now time.Time) string {
	if facts.IsLifetime {
		return models.MembershipPremium
	}
	if facts.ExpiresAt != nil && facts.ExpiresAt.After(now) {
		if facts.InTrial {
			return models.MembershipTrial
		}
		return models.MembershipPremium
	}
	if facts.AutoRenewing {
		return models.MembershipPremium
	}
	return models.MembershipDemo
}

func resolveLifetime(platform, productID string, data models.StoreData) (models.PurchaseFacts, error) {
	facts := models.PurchaseFacts{
		ProductID:    productID,
		IsLifetime:   true,
		AutoRenewing: false,
	}
	switch platform {
	case models.PlatformIOS:
		if data.AppleReceipt == nil {
			return models.PurchaseFacts{}, fmt.Errorf("resolver: apple receipt data missing")
		}
		item := findAppleItem(productID, data.AppleReceipt)
		if item == nil {
			return models.PurchaseFacts{}, models.NotFound("no matching purchase found in receipt")
		}
		if item.CancellationDateMS != "" {
			return models.PurchaseFacts{}, models.FailedPrecondition("purchase has been refunded")
		}
		return facts, nil
	case models.PlatformAndroid:
		if data.GoogleProduct == nil {
			return models.PurchaseFacts{}, fmt.Errorf("resolver: google product data missing")
		}
		// 0 = purchased; pending and canceled one-time purchases grant nothing.
		if data.GoogleProduct.PurchaseState != 0 {
			return models.PurchaseFacts{}, models.FailedPrecondition("purchase is not completed")
		}
		return facts, nil
	default:
		return models.PurchaseFacts{}, models.InvalidArgument(fmt.Sprintf("unsupported platform: %s", platform))
	}
}

func resolveAppleSubscription(productID string, receipt *models.AppleVerifyResponse) (models.PurchaseFacts, error) {
	// Among all line items for this product, the one with the maximum
	// expiry wins: receipts carry the full renewal history.
	var best *models.AppleReceiptItem
	var bestExpiry int64
	for i := range receipt.LatestReceiptInfo {
		item := &receipt.LatestReceiptInfo[i]
		if item.ProductID != productID {
			continue
		}
		expiry, err := parseMillis(item.ExpiresDateMS)
		if err != nil {
			continue
		}
		if best == nil || expiry > bestExpiry {
			best = item
			bestExpiry = expiry
		}
	}
	if best == nil {
		return models.PurchaseFacts{}, models.NotFound("no matching purchase found in receipt")
	}

	expiresAt := millisTime(bestExpiry)
	facts := models.PurchaseFacts{
		ProductID:    productID,
		ExpiresAt:    &expiresAt,
		InTrial:      best.IsTrialPeriod == "true" || best.IsInIntroOfferPeriod == "true",
		AutoRenewing: appleAutoRenewing(productID, receipt.PendingRenewalInfo),
	}
	if facts.InTrial {
		if start, err := parseMillis(best.PurchaseDateMS); err == nil {
			t := millisTime(start)
			facts.TrialStart = &t
		}
		facts.TrialEnd = &expiresAt
	}
	return facts, nil
}

// appleAutoRenewing reads the pending-renewal entry for the product.
// Optimistic default: a receipt without renewal info is treated as renewing.
func appleAutoRenewing(productID string, renewals []models.ApplePendingRenewal) bool {
	for _, r := range renewals {
		if r.ProductID == productID || r.AutoRenewProductID == productID {
			return r.AutoRenewStatus == "1"
		}
	}
	return true
}

func resolveGoogleSubscription(productID string, sub *models.GoogleSubscription) (models.PurchaseFacts, error) {
	expiry, err := parseMillis(sub.ExpiryTimeMillis)
	if err != nil {
		return models.PurchaseFacts{}, models.NotFound("no matching purchase found for token")
	}
	expiresAt := millisTime(expiry)

	facts := models.PurchaseFacts{
		ProductID: productID,
		ExpiresAt: &expiresAt,
		// Free trial is payment state 2. Offer tags are not consulted:
		// they describe the offer type, not the user's current state.
		InTrial: sub.PaymentState != nil && *sub.PaymentState == 2,
	}
	// Conservative default: missing auto-renew means not renewing.
	if sub.AutoRenewing != nil {
		facts.AutoRenewing = *sub.AutoRenewing
	}
	if facts.InTrial {
		if start, err := parseMillis(sub.StartTimeMillis); err == nil {
			t := millisTime(start)
			facts.TrialStart = &t
		}
		facts.TrialEnd = &expiresAt
	}
	return facts, nil
}

func findAppleItem(productID string, receipt *models.AppleVerifyResponse) *models.AppleReceiptItem {
	for i := range receipt.LatestReceiptInfo {
		if receipt.LatestReceiptInfo[i].ProductID == productID {
			return &receipt.LatestReceiptInfo[i]
		}
	}
	if receipt.Receipt != nil {
		for i := range receipt.Receipt.InApp {
			if receipt.Receipt.InApp[i].ProductID == productID {
				return &receipt.Receipt.InApp[i]
			}
		}
	}
	return nil
}

// parseMillis parses a base-10 millisecond-epoch string.
func parseMillis(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive timestamp: %d", v)
	}
	return v, nil
}

func millisTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
