package api

import (
	"net/http"

	"github.com/lp24213/mailbridge/internal/mailbox"
)

// EventsHandler serves the integration event audit listing.
type EventsHandler struct {
	service *mailbox.Service
}

// NewEventsHandler creates a new EventsHandler instance.
func NewEventsHandler(service *mailbox.Service) *EventsHandler {
	return &EventsHandler{service: service}
}

// ListEvents returns recorded integration events, newest first.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := GetOwnerID(w, r); !ok {
		return
	}

	limit, offset := ParseListParams(r, defaultPageSize)

	events, err := h.service.Events(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
