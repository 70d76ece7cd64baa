package model

// NotificationPreference is the per-user push opt-out flag. Users without a
// row are treated as opted in; only an explicit false disables push.
// Read-only from the dispatcher's perspective.
type NotificationPreference struct {
	UserID      int64 `db:"user_id" json:"user_id"`
	PushEnabled bool  `db:"push_enabled" json:"push_enabled"`
}
