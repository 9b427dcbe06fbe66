package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed with
// the shared webhook secret.
const SignatureHeader = "X-Mailbridge-Signature"

const deliveryTimeout = 10 * time.Second

// Dispatcher records integration events and delivers them to the configured
// external endpoint. Every dispatch writes an audit row first; delivery
// failures only flip the row's status and are never surfaced to callers.
type Dispatcher struct {
	pool   *pgxpool.Pool
	url    string
	secret string
	client *http.Client
}

// NewDispatcher creates a dispatcher. An empty url disables delivery; events
// are still recorded with the skipped status.
func NewDispatcher(pool *pgxpool.Pool, url, secret string) *Dispatcher {
	return &Dispatcher{
		pool:   pool,
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Dispatch records one event and, when an endpoint is configured, posts it.
// It never returns an error to the triggering operation; problems are logged
// and reflected in the stored event status.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]any) {
	status := models.EventStatusPending
	if d.url == "" {
		status = models.EventStatusSkipped
	}

	event := &models.IntegrationEvent{
		EventType: eventType,
		Payload:   payload,
		Status:    status,
	}
	if err := db.InsertEvent(ctx, d.pool, event); err != nil {
		log.Printf("webhook: failed to record event %s: %v", eventType, err)
		return
	}

	if d.url == "" {
		return
	}

	if err := d.deliver(ctx, event); err != nil {
		log.Printf("webhook: delivery of event %s (%s) failed: %v", event.ID, eventType, err)
		d.setStatus(ctx, event.ID, models.EventStatusFailed)
		return
	}
	d.setStatus(ctx, event.ID, models.EventStatusDelivered)
}

func (d *Dispatcher) deliver(ctx context.Context, event *models.IntegrationEvent) error {
	body, err := json.Marshal(map[string]any{
		"id":         event.ID,
		"event":      event.EventType,
		"payload":    event.Payload,
		"created_at": event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(d.secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) setStatus(ctx context.Context, eventID, status string) {
	if err := db.SetEventStatus(ctx, d.pool, eventID, status); err != nil {
		log.Printf("webhook: failed to update event %s status to %s: %v", eventID, status, err)
	}
}

// Events lists recorded integration events, newest first.
func (d *Dispatcher) Events(ctx context.Context, limit, offset int) ([]models.IntegrationEvent, error) {
	return db.ListEvents(ctx, d.pool, limit, offset)
}

// Sign computes the signature header value for a request body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
