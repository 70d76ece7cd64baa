package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbox entry statuses. An entry moves pending -> sending -> sent/failed;
// a failed attempt below the ceiling puts it back to pending for the next run.
const (
	StatusPending = "pending"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification categories
const (
	CategoryChallengeStarted   = "challenge_started"
	CategoryChallengeCompleted = "challenge_completed"
	CategoryChallengeReminder  = "challenge_reminder"
	CategoryMilestoneReached   = "milestone_reached"
	CategoryTeamInvite         = "team_invite"
	CategoryTeamMemberJoined   = "team_member_joined"
)

// PayloadTypeKey is the reserved key in the delivered data payload that
// carries the entry's category. A value under this key in the stored payload
// is overwritten at send time.
const PayloadTypeKey = "type"

// OutboxEntry is one queued notification for one recipient. Delivery fans it
// out to every device the recipient has registered.
type OutboxEntry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RecipientID int64           `db:"recipient_id" json:"-"`
	Category    string          `db:"category" json:"category"`
	Title       string          `db:"title" json:"title"`
	Body        string          `db:"body" json:"body"`
	Payload     json.RawMessage `db:"payload" json:"payload,omitempty"`
	Status      string          `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ClaimedAt   *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	SentAt      *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
}
