package handlers

import (
	"encoding/json"
	"net/http"

	"debateBack/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr := models.AsAPIError(err)
	writeJSON(w, apiErr.HTTPStatus(), apiErr)
}

func userIDFromRequest(r *http.Request) string {
	uid, _ := r.Context().Value("user_id").(string)
	return uid
}

func emailFromRequest(r *http.Request) string {
	email, _ := r.Context().Value("email").(string)
	return email
}
