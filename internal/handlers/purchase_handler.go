package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"debateBack/internal/models"
	"debateBack/internal/services"
)

type PurchaseHandler struct {
	Service *services.PurchaseService
}

type purchaseResponse struct {
	Valid            bool       `json:"valid"`
	MembershipStatus string     `json:"membershipStatus"`
	ExpiryDate       *time.Time `json:"expiryDate"`
	TrialStartDate   *time.Time `json:"trialStartDate,omitempty"`
	TrialEndDate     *time.Time `json:"trialEndDate,omitempty"`
	AutoRenewing     bool       `json:"autoRenewing"`
	ProductID        string     `json:"productId"`
	HasUsedTrial     bool       `json:"hasUsedTrial"`
	IsLifetime       bool       `json:"isLifetime"`
}

func (h *PurchaseHandler) ValidatePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, models.InvalidArgument("invalid request body"))
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = "unknown"
	}

	ent, err := h.Service.ValidatePurchase(r.Context(), userIDFromRequest(r), emailFromRequest(r), req)
	if err != nil {
		purchaseValidations.WithLabelValues(platform, "error").Inc()
		writeAPIError(w, err)
		return
	}
	purchaseValidations.WithLabelValues(platform, "ok").Inc()

	writeJSON(w, http.StatusOK, purchaseResponse{
		Valid:            true,
		MembershipStatus: ent.MembershipStatus,
		ExpiryDate:       ent.SubscriptionExpiry,
		TrialStartDate:   ent.TrialStartDate,
		TrialEndDate:     ent.TrialEndDate,
		AutoRenewing:     ent.AutoRenewing,
		ProductID:        ent.ProductID,
		HasUsedTrial:     ent.HasUsedTrial,
		IsLifetime:       ent.IsLifetime,
	})
}

func (h *PurchaseHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	ent, err := h.Service.GetEntitlement(r.Context(), userIDFromRequest(r))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}
