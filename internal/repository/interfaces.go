package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"questhive-backend/internal/model"
)

type OutboxRepository interface {
	// SelectEligible returns up to limit entries ready for processing:
	// pending, or sending with a claim older than staleAfter, in FIFO order.
	SelectEligible(ctx context.Context, maxAttempts int, staleAfter time.Duration, limit int) ([]model.OutboxEntry, error)
	// Claim atomically transitions one entry to sending. Returns false when
	// another worker already advanced the row; the caller skips it silently.
	Claim(ctx context.Context, id uuid.UUID, staleAfter time.Duration) (bool, error)
	// MarkSent finalizes a successful delivery.
	MarkSent(ctx context.Context, id uuid.UUID, attempts int) error
	// MarkRetry puts a failed entry back to pending for a later run.
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	// MarkFailed finalizes an entry that exhausted its attempts or has no
	// recipient devices.
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	// MarkSkipped finalizes an opted-out entry as sent without counting an
	// attempt. Returns false when another worker already finalized the row.
	MarkSkipped(ctx context.Context, id uuid.UUID, note string) (bool, error)
}

type DeviceTokenRepository interface {
	// GetByUserIDs returns all device tokens for a set of users on one platform.
	GetByUserIDs(ctx context.Context, userIDs []int64, platform string) ([]model.DeviceToken, error)
	// Delete removes a device token the provider reported as unregistered.
	Delete(ctx context.Context, token string) error
}

type PreferenceRepository interface {
	// GetPushEnabled returns the explicit per-user flags. Users without a
	// preference row are absent from the map and treated as opted in.
	GetPushEnabled(ctx context.Context, userIDs []int64) (map[int64]bool, error)
}
