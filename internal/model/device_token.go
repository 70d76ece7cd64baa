package model

import (
	"time"
)

// DeviceToken represents a user's registered device for push notifications.
// Supports multiple devices per user. Registration is handled by the main
// app API; the dispatcher only reads tokens and deletes the ones the
// provider reports as permanently unregistered.
type DeviceToken struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Token     string    `db:"token" json:"-"` // stored lowercase, hidden from JSON
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Platform constants
const (
	PlatformIOS = "ios"
)
