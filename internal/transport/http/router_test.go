package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"questhive-backend/internal/handler"
	"questhive-backend/internal/model"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context) (*model.DispatchSummary, error) {
	return &model.DispatchSummary{Results: []model.EntryResult{}}, nil
}

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		DispatchHandler: handler.NewDispatchHandler(stubRunner{}, "s3cret"),
	})
}

func TestDispatchRouteIsPostOnly(t *testing.T) {
	router := newTestRouter()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/internal/notifications/dispatch", nil)
		req.Header.Set(handler.SecretHeader, "s3cret")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, rec.Code)
		}
	}
}

func TestDispatchRouteRunsWithSecret(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/internal/notifications/dispatch", nil)
	req.Header.Set(handler.SecretHeader, "s3cret")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
