package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	MembershipDemo    = "demo"
	MembershipTrial   = "trial"
	MembershipPremium = "premium"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

const (
	ProductMonthly  = "premium_monthly"
	ProductAnnual   = "premium_annual"
	ProductLifetime = "premium_lifetime"
)

// lifetimeProducts is the fixed set of one-time SKUs. Everything else in the
// catalog is an auto-renewable subscription.
var lifetimeProducts = map[string]bool{
	ProductLifetime: true,
}

func IsLifetimeProduct(productID string) bool {
	return lifetimeProducts[productID]
}

// UserEntitlement is the authoritative membership document, one per user.
// Merged on every successful validation or store notification; deleted only
// by explicit account deletion.
//
// Invariants: IsLifetime implies SubscriptionExpiry == nil and
// AutoRenewing == false; MembershipStatus == trial implies IsPremium.
type UserEntitlement struct {
	MembershipStatus   string     `firestore:"membershipStatus" json:"membershipStatus"`
	IsPremium          bool       `firestore:"isPremium" json:"isPremium"`
	IsLifetime         bool       `firestore:"isLifetime" json:"isLifetime"`
	SubscriptionExpiry *time.Time `firestore:"subscriptionExpiry" json:"subscriptionExpiry"`
	TrialStartDate     *time.Time `firestore:"trialStartDate" json:"trialStartDate"`
	TrialEndDate       *time.Time `firestore:"trialEndDate" json:"trialEndDate"`
	AutoRenewing       bool       `firestore:"autoRenewing" json:"autoRenewing"`
	ProductID          string     `firestore:"productId" json:"productId"`
	HasUsedTrial       bool       `firestore:"hasUsedTrial" json:"hasUsedTrial"`
	LastValidated      time.Time  `firestore:"lastValidated" json:"lastValidated"`

	// Lookup keys for notification-to-user resolution; never exposed to
	// entitlement consumers.
	AndroidPurchaseToken string `firestore:"androidPurchaseToken,omitempty" json:"-"`
	AppAccountToken      string `firestore:"appAccountToken,omitempty" json:"-"`
}

// Active reports whether the entitlement grants access at the given moment.
func (e UserEntitlement) Active(now time.Time) bool {
	if e.IsLifetime {
		return true
	}
	return e.SubscriptionExpiry != nil && e.SubscriptionExpiry.After(now)
}

// TrialHistoryRecord outlives account deletion: it is the anchor that stops
// "delete account, recreate, claim another free trial" abuse. Write-once per
// user id.
type TrialHistoryRecord struct {
	UserID         string    `firestore:"userId"`
	IdentityHash   string    `firestore:"identityHash,omitempty"`
	FirstTrialDate time.Time `firestore:"firstTrialDate"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

// PurchaseRequest is the client payload of the synchronous validation call.
type PurchaseRequest struct {
	Platform        string `json:"platform"`
	ProductID       string `json:"product_id"`
	Receipt         string `json:"receipt,omitempty"`
	PurchaseToken   string `json:"purchase_token,omitempty"`
	AppAccountToken string `json:"app_account_token,omitempty"`
}

func (r PurchaseRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return InvalidArgument("product_id is required")
	}
	switch r.Platform {
	case PlatformIOS:
		if strings.TrimSpace(r.Receipt) == "" {
			return InvalidArgument("receipt is required for ios purchases")
		}
	case PlatformAndroid:
		if strings.TrimSpace(r.PurchaseToken) == "" {
			return InvalidArgument("purchase_token is required for android purchases")
		}
	default:
		return InvalidArgument(fmt.Sprintf("unsupported platform: %s", r.Platform))
	}
	return nil
}

// PurchaseFacts is the normalized, transient projection of raw store data.
// Produced by the resolver, consumed immediately, never persisted verbatim.
type PurchaseFacts struct {
	ProductID    string
	ExpiresAt    *time.Time
	InTrial      bool
	TrialStart   *time.Time
	TrialEnd     *time.Time
	AutoRenewing bool
	IsLifetime   bool
}
