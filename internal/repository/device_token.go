package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"questhive-backend/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// GetByUserIDs returns all device tokens for a set of users on one platform.
// Loaded once per batch, not per entry.
func (r *deviceTokenRepository) GetByUserIDs(ctx context.Context, userIDs []int64, platform string) ([]model.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, user_id, token, platform, created_at, updated_at
		FROM device_tokens
		WHERE user_id = ANY($1) AND platform = $2
		ORDER BY updated_at DESC
	`
	var tokens []model.DeviceToken
	err := r.db.SelectContext(ctx, &tokens, query, pq.Array(userIDs), platform)
	if err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes a device token. Tokens are stored lowercase, so the lookup
// normalizes first.
func (r *deviceTokenRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM device_tokens WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, strings.ToLower(token))
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
