package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"questhive-backend/internal/model"
)

type preferenceRepository struct {
	db *sqlx.DB
}

func NewPreferenceRepository(db *sqlx.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// GetPushEnabled returns the explicit flags for the given users. Users
// without a preference row are simply absent from the map.
func (r *preferenceRepository) GetPushEnabled(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	if len(userIDs) == 0 {
		return map[int64]bool{}, nil
	}
	query := `
		SELECT user_id, push_enabled
		FROM notification_preferences
		WHERE user_id = ANY($1)
	`
	var prefs []model.NotificationPreference
	err := r.db.SelectContext(ctx, &prefs, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}

	flags := make(map[int64]bool, len(prefs))
	for _, p := range prefs {
		flags[p.UserID] = p.PushEnabled
	}
	return flags, nil
}
