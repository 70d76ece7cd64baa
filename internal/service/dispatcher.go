package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"questhive-backend/internal/apns"
	"questhive-backend/internal/model"
	"questhive-backend/internal/repository"
)

// PushClient is the outbound delivery port. Provider rejections come back in
// the Result; only transport failures are errors.
type PushClient interface {
	Send(ctx context.Context, deviceToken, bearer string, payload []byte) (*apns.Result, error)
}

// CredentialSigner mints the bearer token presented to the provider.
type CredentialSigner interface {
	Sign(now time.Time) (string, error)
}

// DispatcherConfig holds the per-run tuning knobs.
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	StaleAfter  time.Duration
}

// maxErrorSummaryEntries bounds last_error: only the first few per-token
// failures are recorded, the rest are counted.
const maxErrorSummaryEntries = 3

// Dispatcher drains the notification outbox: it claims eligible entries,
// fans each one out to the recipient's devices, and persists the outcome.
// It is stateless between runs; overlapping invocations coordinate only
// through the claim update in the outbox repository.
type Dispatcher struct {
	outboxRepo repository.OutboxRepository
	tokenRepo  repository.DeviceTokenRepository
	prefRepo   repository.PreferenceRepository
	signer     CredentialSigner
	push       PushClient
	cfg        DispatcherConfig

	// now is swapped in tests
	now func() time.Time
}

func NewDispatcher(
	outboxRepo repository.OutboxRepository,
	tokenRepo repository.DeviceTokenRepository,
	prefRepo repository.PreferenceRepository,
	signer CredentialSigner,
	push PushClient,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}

	return &Dispatcher{
		outboxRepo: outboxRepo,
		tokenRepo:  tokenRepo,
		prefRepo:   prefRepo,
		signer:     signer,
		push:       push,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run executes one dispatcher invocation: sign the provider credential,
// load a batch, process entry by entry. Only global preconditions (credential,
// batch load, preference/device load) abort the run; one bad entry never
// stops the batch.
func (d *Dispatcher) Run(ctx context.Context) (*model.DispatchSummary, error) {
	start := d.now()

	// No send can succeed without a bearer token, so fail before touching
	// the store. The token is reused for every send in this run.
	bearer, err := d.signer.Sign(start)
	if err != nil {
		return nil, fmt.Errorf("sign provider credential: %w", err)
	}

	entries, err := d.outboxRepo.SelectEligible(ctx, d.cfg.MaxAttempts, d.cfg.StaleAfter, d.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load outbox batch: %w", err)
	}

	summary := &model.DispatchSummary{Results: []model.EntryResult{}}
	if len(entries) == 0 {
		log.Printf("[Dispatcher] No eligible entries")
		return summary, nil
	}

	recipientIDs := uniqueRecipients(entries)

	prefs, err := d.prefRepo.GetPushEnabled(ctx, recipientIDs)
	if err != nil {
		return nil, fmt.Errorf("load notification preferences: %w", err)
	}

	devices, err := d.tokenRepo.GetByUserIDs(ctx, recipientIDs, model.PlatformIOS)
	if err != nil {
		return nil, fmt.Errorf("load device tokens: %w", err)
	}
	tokensByUser := make(map[int64][]model.DeviceToken)
	for _, t := range devices {
		tokensByUser[t.UserID] = append(tokensByUser[t.UserID], t)
	}

	for _, entry := range entries {
		result := d.processEntry(ctx, entry, bearer, prefs, tokensByUser[entry.RecipientID])
		summary.Results = append(summary.Results, result)
		summary.Processed++
	}

	log.Printf("[Dispatcher] Run complete: entries=%d duration=%v", summary.Processed, time.Since(start))
	return summary, nil
}

// processEntry handles one outbox entry end to end. Every error below the
// claim is absorbed into the entry's own outcome so the loop continues.
func (d *Dispatcher) processEntry(
	ctx context.Context,
	entry model.OutboxEntry,
	bearer string,
	prefs map[int64]bool,
	tokens []model.DeviceToken,
) model.EntryResult {
	// Opt-out short-circuit: a deliberate no-op success, not a failure.
	// No attempt is counted and no device is contacted.
	if enabled, ok := prefs[entry.RecipientID]; ok && !enabled {
		finalized, err := d.outboxRepo.MarkSkipped(ctx, entry.ID, "push disabled by recipient preference")
		if err != nil {
			log.Printf("[Dispatcher] entry=%s mark skipped: %v", entry.ID, err)
			return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeError, Error: err.Error()}
		}
		if !finalized {
			return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeSkippedClaimed}
		}
		log.Printf("[Dispatcher] entry=%s skipped: recipient=%d opted out", entry.ID, entry.RecipientID)
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeSkippedOptOut}
	}

	claimed, err := d.outboxRepo.Claim(ctx, entry.ID, d.cfg.StaleAfter)
	if err != nil {
		// Store hiccup on this row only; the entry stays eligible for a
		// later run.
		log.Printf("[Dispatcher] entry=%s claim: %v", entry.ID, err)
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeError, Error: err.Error()}
	}
	if !claimed {
		// Another worker advanced the row. Not an error, not an attempt.
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeSkippedClaimed}
	}

	if len(tokens) == 0 {
		// Registering a token is a client-side precondition; retrying here
		// has no value.
		attempts := entry.Attempts + 1
		msg := fmt.Sprintf("no registered devices for recipient %d", entry.RecipientID)
		if err := d.outboxRepo.MarkFailed(ctx, entry.ID, attempts, msg); err != nil {
			log.Printf("[Dispatcher] entry=%s mark failed: %v", entry.ID, err)
		}
		log.Printf("[Dispatcher] entry=%s failed: %s", entry.ID, msg)
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeFailed, Error: msg}
	}

	payload, err := buildPayload(entry)
	if err != nil {
		return d.finishFailure(ctx, entry, len(tokens), []string{err.Error()})
	}

	delivered := 0
	var failures []string
	for _, t := range tokens {
		res, err := d.push.Send(ctx, t.Token, bearer, payload)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", shortToken(t.Token), err))
			continue
		}
		if res.Delivered {
			delivered++
			continue
		}

		failures = append(failures, fmt.Sprintf("%s: status=%d reason=%s env=%s",
			shortToken(t.Token), res.StatusCode, res.Reason, res.Environment))

		// Unregistered is the only reason that evicts a token. Everything
		// else (including an environment mismatch) may still be valid.
		if res.Reason == apns.ReasonUnregistered {
			if err := d.tokenRepo.Delete(ctx, t.Token); err != nil {
				log.Printf("[Dispatcher] entry=%s evict token %s: %v", entry.ID, shortToken(t.Token), err)
			} else {
				log.Printf("[Dispatcher] entry=%s evicted token %s", entry.ID, shortToken(t.Token))
			}
		}
	}

	if delivered > 0 {
		// Partial success is success: devices that failed simply do not
		// show this notification.
		attempts := entry.Attempts + 1
		if err := d.outboxRepo.MarkSent(ctx, entry.ID, attempts); err != nil {
			log.Printf("[Dispatcher] entry=%s mark sent: %v", entry.ID, err)
		}
		log.Printf("[Dispatcher] entry=%s sent: devices=%d delivered=%d", entry.ID, len(tokens), delivered)
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeSent, Devices: len(tokens)}
	}

	return d.finishFailure(ctx, entry, len(tokens), failures)
}

// finishFailure applies the retry-vs-terminal rule for a full-failure
// attempt and persists a bounded error summary.
func (d *Dispatcher) finishFailure(ctx context.Context, entry model.OutboxEntry, devices int, failures []string) model.EntryResult {
	attempts := entry.Attempts + 1
	summary := summarizeFailures(failures)

	if attempts >= d.cfg.MaxAttempts {
		if err := d.outboxRepo.MarkFailed(ctx, entry.ID, attempts, summary); err != nil {
			log.Printf("[Dispatcher] entry=%s mark failed: %v", entry.ID, err)
		}
		log.Printf("[Dispatcher] entry=%s failed after %d attempts: %s", entry.ID, attempts, summary)
		return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeFailed, Devices: devices, Error: summary}
	}

	if err := d.outboxRepo.MarkRetry(ctx, entry.ID, attempts, summary); err != nil {
		log.Printf("[Dispatcher] entry=%s mark retry: %v", entry.ID, err)
	}
	log.Printf("[Dispatcher] entry=%s will retry: attempts=%d/%d error=%s", entry.ID, attempts, d.cfg.MaxAttempts, summary)
	return model.EntryResult{ID: entry.ID, Outcome: model.OutcomeRetry, Devices: devices, Error: summary}
}

// buildPayload assembles the APNs JSON body: title/body under the standard
// alert fields and the stored payload merged into the data block with the
// category injected under the reserved type key.
func buildPayload(entry model.OutboxEntry) ([]byte, error) {
	data := make(map[string]json.RawMessage)
	if len(entry.Payload) > 0 {
		if err := json.Unmarshal(entry.Payload, &data); err != nil {
			return nil, fmt.Errorf("decode entry payload: %w", err)
		}
	}

	category, err := json.Marshal(entry.Category)
	if err != nil {
		return nil, fmt.Errorf("encode entry category: %w", err)
	}
	data[model.PayloadTypeKey] = category

	body := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{
				"title": entry.Title,
				"body":  entry.Body,
			},
			"sound": "default",
		},
		"data": data,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode push payload: %w", err)
	}
	return encoded, nil
}

// summarizeFailures joins the first few per-token failures into a
// human-readable last_error and counts the rest.
func summarizeFailures(failures []string) string {
	if len(failures) == 0 {
		return "no delivery succeeded"
	}
	if len(failures) <= maxErrorSummaryEntries {
		return strings.Join(failures, "; ")
	}
	head := strings.Join(failures[:maxErrorSummaryEntries], "; ")
	return fmt.Sprintf("%s (and %d more)", head, len(failures)-maxErrorSummaryEntries)
}

func uniqueRecipients(entries []model.OutboxEntry) []int64 {
	seen := make(map[int64]bool, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if !seen[e.RecipientID] {
			seen[e.RecipientID] = true
			ids = append(ids, e.RecipientID)
		}
	}
	return ids
}

// shortToken truncates a device token for logs and error summaries.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
