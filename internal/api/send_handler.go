package api

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/lp24213/mailbridge/internal/mailbox"
	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/smtp"
)

const maxSendBodyBytes = 32 << 20 // 32 MB

// SendHandler handles outbound message submission, as JSON or as a
// multipart form with file attachments.
type SendHandler struct {
	service *mailbox.Service
}

// NewSendHandler creates a new SendHandler instance.
func NewSendHandler(service *mailbox.Service) *SendHandler {
	return &SendHandler{service: service}
}

type sendRequest struct {
	To          []string                `json:"to"`
	Subject     string                  `json:"subject"`
	HTML        string                  `json:"html"`
	Text        string                  `json:"text"`
	Attachments []sendRequestAttachment `json:"attachments"`
}

type sendRequestAttachment struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	ContentID     string `json:"content_id"`
	ContentBase64 string `json:"content_base64"`
}

// Send submits an outbound message. Transport failures come back as a 200
// with success=false; only request and account errors use error statuses.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request, accountID string) {
	ownerID, ok := GetOwnerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSendBodyBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		return
	}

	var msg *smtp.OutboundMessage
	if strings.HasPrefix(mediaType, "multipart/") {
		msg, ok = parseMultipartSend(w, r)
	} else {
		msg, ok = parseJSONSend(w, r)
	}
	if !ok {
		return
	}

	result, err := h.service.SendMessage(r.Context(), ownerID, accountID, msg)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func parseJSONSend(w http.ResponseWriter, r *http.Request) (*smtp.OutboundMessage, bool) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}

	attachments := make([]models.OutboundAttachment, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		var source models.AttachmentSource
		if att.ContentBase64 != "" {
			source = models.Base64Source(att.ContentBase64)
		}
		attachments = append(attachments, models.OutboundAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			ContentID:   att.ContentID,
			Source:      source,
		})
	}

	return &smtp.OutboundMessage{
		To:          req.To,
		Subject:     req.Subject,
		HTML:        req.HTML,
		Text:        req.Text,
		Attachments: attachments,
	}, true
}

// parseMultipartSend reads a browser form submission. Recipient addresses
// come comma-separated in the "to" field; each file in "attachments" becomes
// one attachment streamed straight from the form part.
func parseMultipartSend(w http.ResponseWriter, r *http.Request) (*smtp.OutboundMessage, bool) {
	if err := r.ParseMultipartForm(maxSendBodyBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return nil, false
	}

	var to []string
	for _, field := range r.MultipartForm.Value["to"] {
		for _, addr := range strings.Split(field, ",") {
			to = append(to, strings.TrimSpace(addr))
		}
	}

	msg := &smtp.OutboundMessage{
		To:      to,
		Subject: r.FormValue("subject"),
		HTML:    r.FormValue("html"),
		Text:    r.FormValue("text"),
	}

	for _, header := range r.MultipartForm.File["attachments"] {
		// The form's RemoveAll closes these after the handler returns; the
		// sender reads them before that.
		file, err := header.Open()
		if err != nil {
			log.Printf("SendHandler: Failed to open form attachment %s: %v", header.Filename, err)
			http.Error(w, "Failed to read attachment", http.StatusBadRequest)
			return nil, false
		}

		msg.Attachments = append(msg.Attachments, models.OutboundAttachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Source:      models.ReaderSource{Reader: file},
		})
	}

	return msg, true
}
