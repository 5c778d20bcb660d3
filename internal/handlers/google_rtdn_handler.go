package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"debateBack/internal/models"
	"debateBack/internal/services"
)

// GoogleRTDNHandler ingests Real-time Developer Notifications delivered by a
// Pub/Sub push subscription. Every request is answered 200 no matter what:
// a non-200 makes Pub/Sub redeliver forever, and a notification that cannot
// be applied now will be reconciled by the next synchronous validation.
type GoogleRTDNHandler struct {
	Google       services.GoogleVerifier
	Entitlements services.EntitlementStore
}

type pubsubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type developerNotification struct {
	Version                  string `json:"version"`
	PackageName              string `json:"packageName"`
	EventTimeMillis          string `json:"eventTimeMillis"`
	SubscriptionNotification *struct {
		Version          string `json:"version"`
		NotificationType int    `json:"notificationType"`
		PurchaseToken    string `json:"purchaseToken"`
		SubscriptionID   string `json:"subscriptionId"`
	} `json:"subscriptionNotification"`
	TestNotification *struct {
		Version string `json:"version"`
	} `json:"testNotification"`
}

// RTDN subscription notification types that terminate the entitlement.
const (
	rtdnRevoked = 12
	rtdnExpired = 13
)

func (h *GoogleRTDNHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	// Acknowledge unconditionally; all failures below are logged and dropped.
	defer writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	id := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[RTDN] id=%s read body: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	var env pubsubEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("[RTDN] id=%s decode envelope: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	payload, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		payload, err = base64.URLEncoding.DecodeString(env.Message.Data)
	}
	if err != nil {
		log.Printf("[RTDN] id=%s decode data: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	var notif developerNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		log.Printf("[RTDN] id=%s decode notification: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	if notif.TestNotification != nil {
		log.Printf("[RTDN] id=%s test notification", id)
		storeNotifications.WithLabelValues("google", "ignored").Inc()
		return
	}
	sub := notif.SubscriptionNotification
	if sub == nil || sub.PurchaseToken == "" || sub.SubscriptionID == "" {
		log.Printf("[RTDN] id=%s no subscription payload, dropping", id)
		storeNotifications.WithLabelValues("google", "ignored").Inc()
		return
	}

	log.Printf("[RTDN] id=%s type=%d subscription=%s", id, sub.NotificationType, sub.SubscriptionID)

	userID, _, err := h.Entitlements.FindUserByAndroidToken(r.Context(), sub.PurchaseToken)
	if err == models.ErrNoRecord {
		log.Printf("[RTDN] id=%s no user for purchase token, dropping", id)
		storeNotifications.WithLabelValues("google", "orphan").Inc()
		return
	}
	if err != nil {
		log.Printf("[RTDN] id=%s token lookup: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	if sub.NotificationType == rtdnRevoked || sub.NotificationType == rtdnExpired {
		h.downgrade(r, id, userID, sub.PurchaseToken)
		return
	}

	// Everything else, renewals and cancellations included, goes through the
	// same resolution as a synchronous validation. A canceled-but-paid-up
	// subscription stays premium with autoRenewing off until it expires.
	verified, err := h.Google.VerifySubscription(r.Context(), sub.SubscriptionID, sub.PurchaseToken)
	if err != nil {
		log.Printf("[RTDN] id=%s verify subscription: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}
	facts, err := services.ResolvePurchaseFacts(models.PlatformAndroid, sub.SubscriptionID, models.StoreData{GoogleSubscription: &verified})
	if err != nil {
		log.Printf("[RTDN] id=%s resolve: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	status := services.DeriveStatus(facts, time.Now().UTC())
	fields := services.EntitlementFields(facts, status)
	if err := h.Entitlements.Merge(r.Context(), userID, fields); err != nil {
		log.Printf("[RTDN] id=%s merge user=%s: %v", id, userID, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	log.Printf("[RTDN] id=%s applied user=%s status=%s", id, userID, status)
	storeNotifications.WithLabelValues("google", "ok").Inc()
}

// downgrade confirms the terminal state with the subscriptionsv2 lookup
// before dropping the user to demo.
func (h *GoogleRTDNHandler) downgrade(r *http.Request, id, userID, token string) {
	v2, err := h.Google.VerifySubscriptionV2(r.Context(), token)
	if err != nil {
		log.Printf("[RTDN] id=%s confirm terminal state: %v", id, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}
	switch v2.SubscriptionState {
	case "SUBSCRIPTION_STATE_EXPIRED", "SUBSCRIPTION_STATE_REVOKED":
	default:
		log.Printf("[RTDN] id=%s state=%s not terminal, dropping", id, v2.SubscriptionState)
		storeNotifications.WithLabelValues("google", "ignored").Inc()
		return
	}

	fields := map[string]interface{}{
		"membershipStatus": models.MembershipDemo,
		"isPremium":        false,
		"autoRenewing":     false,
	}
	if err := h.Entitlements.Merge(r.Context(), userID, fields); err != nil {
		log.Printf("[RTDN] id=%s merge user=%s: %v", id, userID, err)
		storeNotifications.WithLabelValues("google", "error").Inc()
		return
	}

	log.Printf("[RTDN] id=%s downgraded user=%s state=%s", id, userID, v2.SubscriptionState)
	storeNotifications.WithLabelValues("google", "ok").Inc()
}
