package api

import (
	"net/http"
	"strconv"

	"github.com/lp24213/mailbridge/internal/mailbox"
)

const defaultPageSize = 50

// MessagesHandler handles message listing, retrieval, and flag mutations.
type MessagesHandler struct {
	service *mailbox.Service
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(service *mailbox.Service) *MessagesHandler {
	return &MessagesHandler{service: service}
}

func folderParam(r *http.Request) string {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "INBOX"
	}
	return folder
}

// ListMessages returns a page of message summaries, served from the cache
// when possible.
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request, accountID string) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	limit, offset := ParseListParams(r, defaultPageSize)
	folder := folderParam(r)

	var err error
	var page any
	if r.URL.Query().Get("refresh") == "true" {
		page, err = h.service.FetchLive(r.Context(), ownerID, accountID, folder, limit, offset)
	} else {
		page, err = h.service.ListMessages(r.Context(), ownerID, accountID, folder, limit, offset)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// GetMessage returns one fully decoded message.
func (h *MessagesHandler) GetMessage(w http.ResponseWriter, r *http.Request, accountID string, uid uint32) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	message, err := h.service.GetMessage(r.Context(), ownerID, accountID, uid, folderParam(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, message)
}

// MarkRead flags a message as read on the remote server.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request, accountID string, uid uint32) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), ownerID, accountID, uid, folderParam(r)); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteMessage deletes a message on the remote server.
func (h *MessagesHandler) DeleteMessage(w http.ResponseWriter, r *http.Request, accountID string, uid uint32) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), ownerID, accountID, uid, folderParam(r)); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ParseUID parses a message uid path segment. Returns (0, false) and writes a
// 400 when it is not a positive integer.
func ParseUID(w http.ResponseWriter, segment string) (uint32, bool) {
	uid, err := strconv.ParseUint(segment, 10, 32)
	if err != nil || uid == 0 {
		http.Error(w, "Invalid message uid", http.StatusBadRequest)
		return 0, false
	}
	return uint32(uid), true
}
