package repository

import (
	"context"
	"fmt"
)

// WebhookRepository records processed provider events for de-duplication.
type WebhookRepository interface {
	// MarkProcessed returns true the first time an event id is seen.
	MarkProcessed(ctx context.Context, provider, eventID, eventType string) (bool, error)
}

type webhookRepo struct {
	db DBTX
}

func NewWebhookRepo(db DBTX) WebhookRepository {
	return &webhookRepo{db: db}
}

func (r *webhookRepo) MarkProcessed(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	const q = `
		INSERT INTO webhook_events (provider, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, q, provider, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("record %s webhook event %s: %w", provider, eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
