package handlers

import (
	"net/http"

	"debateBack/internal/services"
)

type AccountHandler struct {
	Service *services.AccountService
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAccount(r.Context(), userIDFromRequest(r)); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
