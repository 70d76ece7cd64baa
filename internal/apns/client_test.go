package apns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// Test Helpers
// =============================================================================

type recordedRequest struct {
	Path    string
	Headers http.Header
}

// fakeProvider stands in for one APNs host and records what it saw.
type fakeProvider struct {
	status   int
	body     string
	requests []recordedRequest
	server   *httptest.Server
}

func newFakeProvider(status int, body string) *fakeProvider {
	p := &fakeProvider{status: status, body: body}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.requests = append(p.requests, recordedRequest{Path: r.URL.Path, Headers: r.Header.Clone()})
		w.WriteHeader(p.status)
		w.Write([]byte(p.body))
	}))
	return p
}

func newTestClient(production, sandbox *fakeProvider) *Client {
	return &Client{
		topic:          "com.questhive.app",
		httpClient:     http.DefaultClient,
		productionHost: production.server.URL,
		sandboxHost:    sandbox.server.URL,
	}
}

// =============================================================================
// Delivery and headers
// =============================================================================

func TestSendDeliversToProduction(t *testing.T) {
	production := newFakeProvider(http.StatusOK, "")
	sandbox := newFakeProvider(http.StatusOK, "")
	defer production.server.Close()
	defer sandbox.server.Close()

	client := newTestClient(production, sandbox)

	res, err := client.Send(context.Background(), "abc123token", "bearer-token", []byte(`{"aps":{}}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !res.Delivered {
		t.Fatal("expected delivery")
	}
	if res.Environment != EnvironmentProduction {
		t.Fatalf("expected production environment, got %s", res.Environment)
	}
	if len(sandbox.requests) != 0 {
		t.Fatalf("sandbox should not be called, got %d requests", len(sandbox.requests))
	}

	req := production.requests[0]
	if req.Path != "/3/device/abc123token" {
		t.Fatalf("unexpected path: %s", req.Path)
	}
	if got := req.Headers.Get("authorization"); got != "bearer bearer-token" {
		t.Fatalf("unexpected authorization header: %s", got)
	}
	if got := req.Headers.Get("apns-topic"); got != "com.questhive.app" {
		t.Fatalf("unexpected apns-topic: %s", got)
	}
	if got := req.Headers.Get("apns-push-type"); got != "alert" {
		t.Fatalf("unexpected apns-push-type: %s", got)
	}
	if got := req.Headers.Get("apns-priority"); got != "10" {
		t.Fatalf("unexpected apns-priority: %s", got)
	}
}

func TestSendTreatsAny2xxAsDelivered(t *testing.T) {
	production := newFakeProvider(http.StatusAccepted, "")
	sandbox := newFakeProvider(http.StatusOK, "")
	defer production.server.Close()
	defer sandbox.server.Close()

	client := newTestClient(production, sandbox)

	res, err := client.Send(context.Background(), "abc123token", "bearer-token", []byte(`{}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !res.Delivered {
		t.Fatalf("expected 202 to count as delivered, got status=%d", res.StatusCode)
	}
}

// =============================================================================
// Sandbox retry state machine
// =============================================================================

func TestSendRetriesSandboxOnBadDeviceToken(t *testing.T) {
	production := newFakeProvider(http.StatusBadRequest, `{"reason":"BadDeviceToken"}`)
	sandbox := newFakeProvider(http.StatusOK, "")
	defer production.server.Close()
	defer sandbox.server.Close()

	client := newTestClient(production, sandbox)

	res, err := client.Send(context.Background(), "sandboxtoken", "bearer-token", []byte(`{}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !res.Delivered {
		t.Fatal("expected delivery via sandbox")
	}
	if res.Environment != EnvironmentSandbox {
		t.Fatalf("expected sandbox environment, got %s", res.Environment)
	}
	if len(production.requests) != 1 || len(sandbox.requests) != 1 {
		t.Fatalf("expected one request per host, got production=%d sandbox=%d",
			len(production.requests), len(sandbox.requests))
	}
}

func TestSendNoRetryOnOtherRejections(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{"unregistered", http.StatusGone, `{"reason":"Unregistered"}`, ReasonUnregistered},
		{"bad collapse id", http.StatusBadRequest, `{"reason":"BadCollapseId"}`, "BadCollapseId"},
		{"server error", http.StatusInternalServerError, ``, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			production := newFakeProvider(tc.status, tc.body)
			sandbox := newFakeProvider(http.StatusOK, "")
			defer production.server.Close()
			defer sandbox.server.Close()

			client := newTestClient(production, sandbox)

			res, err := client.Send(context.Background(), "sometoken", "bearer-token", []byte(`{}`))
			if err != nil {
				t.Fatalf("Send: %v", err)
			}

			if res.Delivered {
				t.Fatal("expected rejection")
			}
			if res.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, res.StatusCode)
			}
			if res.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, res.Reason)
			}
			if res.Environment != EnvironmentProduction {
				t.Fatalf("expected production environment, got %s", res.Environment)
			}
			if len(sandbox.requests) != 0 {
				t.Fatal("sandbox should not be called for non-BadDeviceToken rejections")
			}
		})
	}
}

// =============================================================================
// Transport failures
// =============================================================================

func TestSendTransportError(t *testing.T) {
	production := newFakeProvider(http.StatusOK, "")
	sandbox := newFakeProvider(http.StatusOK, "")
	defer sandbox.server.Close()

	client := newTestClient(production, sandbox)
	// Kill the production host so the connection is refused.
	production.server.Close()

	if _, err := client.Send(context.Background(), "sometoken", "bearer-token", []byte(`{}`)); err == nil {
		t.Fatal("expected transport error")
	}
}
