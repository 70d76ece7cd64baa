package handler

import (
	"context"
	"log"
	"net/http"

	"questhive-backend/internal/httputil"
	"questhive-backend/internal/model"
)

// DispatchRunner abstracts the dispatcher service so the handler can be
// tested without a store or a provider.
type DispatchRunner interface {
	Run(ctx context.Context) (*model.DispatchSummary, error)
}

// SecretHeader carries the shared secret the external scheduler must
// present. This is a coarse operational gate, not user authentication.
const SecretHeader = "X-Dispatch-Secret"

type DispatchHandler struct {
	dispatcher DispatchRunner
	secret     string
}

func NewDispatchHandler(dispatcher DispatchRunner, secret string) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		secret:     secret,
	}
}

// Trigger handles POST /internal/notifications/dispatch
// Runs one dispatcher invocation and returns the per-entry summary.
// The secret is checked before anything touches the store.
func (h *DispatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(SecretHeader) != h.secret {
		httputil.WriteUnauthorized(w, "Invalid dispatch secret")
		return
	}

	summary, err := h.dispatcher.Run(r.Context())
	if err != nil {
		log.Printf("[ERROR] Dispatch run: %v", err)
		httputil.WriteInternalError(w, "Dispatch run failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}
