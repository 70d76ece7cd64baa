package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"questhive-backend/internal/model"
)

type outboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// SelectEligible fetches the oldest entries that are ready for processing.
// An abandoned claim (sending with claimed_at older than staleAfter) counts
// as eligible again, so a crashed worker's rows are eventually re-claimed.
func (r *outboxRepository) SelectEligible(ctx context.Context, maxAttempts int, staleAfter time.Duration, limit int) ([]model.OutboxEntry, error) {
	query := `
		SELECT id, recipient_id, category, title, body, payload, status, attempts, last_error, created_at, claimed_at, sent_at
		FROM notification_outbox
		WHERE attempts < $1
		  AND (status = 'pending' OR (status = 'sending' AND claimed_at < NOW() - $2 * INTERVAL '1 second'))
		ORDER BY created_at ASC
		LIMIT $3
	`
	var entries []model.OutboxEntry
	err := r.db.SelectContext(ctx, &entries, query, maxAttempts, staleAfter.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("select eligible outbox entries: %w", err)
	}
	return entries, nil
}

// Claim is the sole concurrency-safety mechanism: a conditional update that
// only one racing worker can win. The staleness predicate in the WHERE
// clause is what disqualifies the loser - a fresh claimed_at makes the row
// invisible to a second claim.
func (r *outboxRepository) Claim(ctx context.Context, id uuid.UUID, staleAfter time.Duration) (bool, error) {
	query := `
		UPDATE notification_outbox
		SET status = 'sending', claimed_at = NOW()
		WHERE id = $1
		  AND (status = 'pending' OR (status = 'sending' AND claimed_at < NOW() - $2 * INTERVAL '1 second'))
	`
	res, err := r.db.ExecContext(ctx, query, id, staleAfter.Seconds())
	if err != nil {
		return false, fmt.Errorf("claim outbox entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim outbox entry: %w", err)
	}
	return affected > 0, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	query := `
		UPDATE notification_outbox
		SET status = 'sent', attempts = $2, last_error = NULL, claimed_at = NULL, sent_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, attempts)
	if err != nil {
		return fmt.Errorf("mark outbox entry sent: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	query := `
		UPDATE notification_outbox
		SET status = 'pending', attempts = $2, last_error = $3, claimed_at = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("mark outbox entry for retry: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	query := `
		UPDATE notification_outbox
		SET status = 'failed', attempts = $2, last_error = $3, claimed_at = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return nil
}

// MarkSkipped runs before any claim, so it carries its own guard: a row
// another worker already finalized must not be flipped back to sent.
func (r *outboxRepository) MarkSkipped(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	query := `
		UPDATE notification_outbox
		SET status = 'sent', last_error = $2, sent_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'sending')
	`
	res, err := r.db.ExecContext(ctx, query, id, note)
	if err != nil {
		return false, fmt.Errorf("mark outbox entry skipped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark outbox entry skipped: %w", err)
	}
	return affected > 0, nil
}
