package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/lp24213/mailbridge/internal/crypto"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/imap"
)

// OwnerIDHeader identifies the authenticated owner on every request. The
// gateway in front of this service sets it; requests without it are rejected.
const OwnerIDHeader = "X-User-ID"

// GetOwnerID extracts the owner id from the request headers and writes a 401
// when it is missing. Returns (ownerID, true) on success.
func GetOwnerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(OwnerIDHeader)
	if ownerID == "" {
		log.Println("API: No owner id on request")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return ownerID, true
}

// ParseListParams parses limit and offset from query parameters, falling back
// to defaults when missing or invalid.
func ParseListParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// WriteJSON encodes the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
	}
}

// WriteServiceError maps service-layer errors to HTTP status codes without
// leaking provider details or credentials into the response body.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrAccountNotFound):
		http.Error(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, db.ErrAccountExists):
		http.Error(w, "Account already exists", http.StatusConflict)
	case errors.Is(err, imap.ErrMessageNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, imap.ErrTimeout):
		http.Error(w, "Connection to mail server timed out. Please double-check the account's server settings and try again.", http.StatusServiceUnavailable)
	case errors.Is(err, imap.ErrConnectionFailed):
		http.Error(w, "Failed to connect to mail server", http.StatusBadGateway)
	case errors.Is(err, crypto.ErrDecryptionFailed):
		log.Printf("API: Credential decryption failed: %v", err)
		http.Error(w, "Stored credential could not be decrypted. Please re-enter the account password.", http.StatusInternalServerError)
	default:
		log.Printf("API: Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
