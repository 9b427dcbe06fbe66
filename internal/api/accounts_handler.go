package api

import (
	"encoding/json"
	"net/http"

	"github.com/lp24213/mailbridge/internal/mailbox"
)

// AccountsHandler handles account provisioning and management requests.
type AccountsHandler struct {
	service *mailbox.Service
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(service *mailbox.Service) *AccountsHandler {
	return &AccountsHandler{service: service}
}

type createAccountRequest struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	IMAPHost   string `json:"imap_host,omitempty"`
	IMAPPort   int    `json:"imap_port,omitempty"`
	IMAPSecure *bool  `json:"imap_secure,omitempty"`
	SMTPHost   string `json:"smtp_host,omitempty"`
	SMTPPort   int    `json:"smtp_port,omitempty"`
	SMTPSecure *bool  `json:"smtp_secure,omitempty"`
}

// CreateAccount provisions a new mail account for the current owner. The
// password is encrypted before it is stored and never echoed back.
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Address == "" || req.Password == "" {
		http.Error(w, "address and password are required", http.StatusBadRequest)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), ownerID, mailbox.CreateAccountInput{
		Address:    req.Address,
		Password:   req.Password,
		IMAPHost:   req.IMAPHost,
		IMAPPort:   req.IMAPPort,
		IMAPSecure: req.IMAPSecure,
		SMTPHost:   req.SMTPHost,
		SMTPPort:   req.SMTPPort,
		SMTPSecure: req.SMTPSecure,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, account)
}

// ListAccounts returns the current owner's accounts.
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// DeleteAccount removes an account and its cached messages.
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), ownerID, accountID); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
