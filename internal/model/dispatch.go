package model

import (
	"github.com/google/uuid"
)

// Per-entry dispatch outcomes reported in the run summary.
const (
	OutcomeSent           = "sent"
	OutcomeRetry          = "retry"
	OutcomeFailed         = "failed"
	OutcomeSkippedOptOut  = "skipped_opt_out"
	OutcomeSkippedClaimed = "skipped_claimed"
	OutcomeError          = "error"
)

// EntryResult is the outcome of processing one outbox entry in a run.
type EntryResult struct {
	ID      uuid.UUID `json:"id"`
	Outcome string    `json:"outcome"`
	Devices int       `json:"devices"`
	Error   string    `json:"error,omitempty"`
}

// DispatchSummary is the JSON response of one dispatcher run. It exists for
// operational logging, not as a public API contract.
type DispatchSummary struct {
	Processed int           `json:"processed"`
	Results   []EntryResult `json:"results"`
}
