package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"debateBack/internal/models"
	"debateBack/internal/services"
)

// Notification types that end the entitlement outright.
var appleTerminalTypes = map[string]bool{
	"EXPIRED":              true,
	"REVOKE":               true,
	"REFUND":               true,
	"GRACE_PERIOD_EXPIRED": true,
}

// AppleWebhookHandler ingests App Store server notifications (v2). Apple
// retries non-200 responses, so once the signature checks out everything is
// answered 200; failures are logged and left to the next synchronous
// validation to reconcile.
type AppleWebhookHandler struct {
	Notifications *services.AppleNotificationService
	Entitlements  services.EntitlementStore
	Replay        *services.ReplayGuard
}

func (h *AppleWebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		SignedPayload string `json:"signedPayload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SignedPayload == "" {
		writeAPIError(w, models.InvalidArgument("signedPayload is required"))
		return
	}

	notif, err := h.Notifications.ParseNotification(r.Context(), body.SignedPayload)
	if err != nil {
		log.Printf("[APPLE] verify notification: %v", err)
		storeNotifications.WithLabelValues("apple", "invalid").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	h.apply(r, notif)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AppleWebhookHandler) apply(r *http.Request, notif models.AppleNotificationPayload) {
	tag := notif.NotificationType
	if notif.Subtype != "" {
		tag += "/" + notif.Subtype
	}

	if h.Replay.Seen(r.Context(), notif.NotificationUUID) {
		log.Printf("[APPLE] %s uuid=%s already processed", tag, notif.NotificationUUID)
		storeNotifications.WithLabelValues("apple", "replay").Inc()
		return
	}

	if notif.Data.SignedTransactionInfo == "" {
		log.Printf("[APPLE] %s has no transaction info, dropping", tag)
		storeNotifications.WithLabelValues("apple", "ignored").Inc()
		return
	}
	txn, err := h.Notifications.DecodeTransaction(r.Context(), notif.Data.SignedTransactionInfo)
	if err != nil {
		log.Printf("[APPLE] %s decode transaction: %v", tag, err)
		storeNotifications.WithLabelValues("apple", "invalid").Inc()
		return
	}
	if txn.AppAccountToken == "" {
		log.Printf("[APPLE] %s txn=%s has no app account token, dropping", tag, txn.TransactionID)
		storeNotifications.WithLabelValues("apple", "ignored").Inc()
		return
	}

	userID, _, err := h.Entitlements.FindUserByAppAccountToken(r.Context(), txn.AppAccountToken)
	if err == models.ErrNoRecord {
		log.Printf("[APPLE] %s no user for app account token, dropping", tag)
		storeNotifications.WithLabelValues("apple", "orphan").Inc()
		return
	}
	if err != nil {
		log.Printf("[APPLE] %s token lookup: %v", tag, err)
		storeNotifications.WithLabelValues("apple", "error").Inc()
		return
	}

	var fields map[string]interface{}
	if appleTerminalTypes[notif.NotificationType] {
		fields = map[string]interface{}{
			"membershipStatus": models.MembershipDemo,
			"isPremium":        false,
			"autoRenewing":     false,
		}
	} else {
		facts := models.PurchaseFacts{
			ProductID:    txn.ProductID,
			InTrial:      txn.OfferType == 1,
			AutoRenewing: h.autoRenewing(r, notif),
			IsLifetime:   models.IsLifetimeProduct(txn.ProductID),
		}
		// A transaction without an expiry must never wipe a stored one;
		// the expiry field only enters the merge when Apple sent it.
		if txn.ExpiresDate > 0 {
			expiry := time.UnixMilli(txn.ExpiresDate).UTC()
			facts.ExpiresAt = &expiry
		}
		status := services.DeriveStatus(facts, time.Now().UTC())
		fields = services.EntitlementFields(facts, status)
	}

	if err := h.Entitlements.Merge(r.Context(), userID, fields); err != nil {
		log.Printf("[APPLE] %s merge user=%s: %v", tag, userID, err)
		storeNotifications.WithLabelValues("apple", "error").Inc()
		return
	}

	log.Printf("[APPLE] %s applied user=%s", tag, userID)
	storeNotifications.WithLabelValues("apple", "ok").Inc()
}

// autoRenewing prefers the signed renewal info; the renewal-status subtype is
// the fallback, and absent both the flag stays optimistic.
func (h *AppleWebhookHandler) autoRenewing(r *http.Request, notif models.AppleNotificationPayload) bool {
	if notif.Data.SignedRenewalInfo != "" {
		renewal, err := h.Notifications.DecodeRenewalInfo(r.Context(), notif.Data.SignedRenewalInfo)
		if err == nil {
			return renewal.AutoRenewStatus == 1
		}
		log.Printf("[APPLE] decode renewal info: %v", err)
	}
	if notif.NotificationType == "DID_CHANGE_RENEWAL_STATUS" {
		return notif.Subtype == "AUTO_RENEW_ENABLED"
	}
	return true
}
