package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/models"
)

// InsertEvent appends one integration event row and populates its generated
// id and creation timestamp. Rows are append-only; only the delivery status
// is ever updated afterwards.
func InsertEvent(ctx context.Context, pool *pgxpool.Pool, event *models.IntegrationEvent) error {
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO integration_events (event_type, payload_json, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, event.EventType, event.Payload, event.Status).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert integration event: %w", err)
	}

	return nil
}

// SetEventStatus records the delivery outcome of one event.
func SetEventStatus(ctx context.Context, pool *pgxpool.Pool, eventID, status string) error {
	_, err := pool.Exec(ctx, `
		UPDATE integration_events SET status = $2 WHERE id = $1
	`, eventID, status)
	if err != nil {
		return fmt.Errorf("failed to set event status: %w", err)
	}
	return nil
}

// ListEvents returns the most recent integration events for the admin
// listing endpoint.
func ListEvents(ctx context.Context, pool *pgxpool.Pool, limit, offset int) ([]models.IntegrationEvent, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, event_type, payload_json, status, created_at
		FROM integration_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list integration events: %w", err)
	}
	defer rows.Close()

	var events []models.IntegrationEvent
	for rows.Next() {
		var event models.IntegrationEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&event.Status,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan integration event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integration events: %w", err)
	}

	return events, nil
}
