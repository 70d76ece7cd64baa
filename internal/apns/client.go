package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APNs hosts. Which one a device token belongs to depends on how the app
// build was signed, which the backend cannot see at registration time.
const (
	ProductionHost = "https://api.push.apple.com"
	SandboxHost    = "https://api.sandbox.push.apple.com"
)

// Environment labels reported on each result.
const (
	EnvironmentProduction = "production"
	EnvironmentSandbox    = "sandbox"
)

// Provider failure reasons the dispatcher branches on. Unregistered is the
// only reason that evicts a device token.
const (
	ReasonUnregistered   = "Unregistered"
	ReasonBadDeviceToken = "BadDeviceToken"
)

// Result reports one send to one device token. Provider-level rejections
// land here, not in an error.
type Result struct {
	Delivered   bool   `json:"delivered"`
	StatusCode  int    `json:"status_code"`
	Reason      string `json:"reason,omitempty"`
	Body        string `json:"body,omitempty"`
	Environment string `json:"environment"`
}

// errorBody is the JSON body APNs returns on rejections.
type errorBody struct {
	Reason string `json:"reason"`
}

// Client sends one notification to one device token over the APNs HTTP API.
//
// Tokens issued to development/TestFlight builds are indistinguishable from
// production tokens, so the client discovers the right environment lazily:
// it tries production first and retries the sandbox host exactly once when
// production answers 400/BadDeviceToken. Any other rejection is returned
// as-is.
type Client struct {
	topic          string
	httpClient     *http.Client
	productionHost string
	sandboxHost    string
}

// NewClient creates an APNs client for the given topic (the app bundle ID).
func NewClient(topic string) *Client {
	return &Client{
		topic: topic,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		productionHost: ProductionHost,
		sandboxHost:    SandboxHost,
	}
}

// Send delivers one payload to one device token. Only genuine transport
// failures (DNS, TLS, timeout) return a non-nil error; everything the
// provider said is in the Result, including which environment served the
// final attempt.
func (c *Client) Send(ctx context.Context, deviceToken, bearer string, payload []byte) (*Result, error) {
	result, err := c.post(ctx, c.productionHost, deviceToken, bearer, payload)
	if err != nil {
		return nil, err
	}
	result.Environment = EnvironmentProduction

	// A sandbox-minted token is rejected by production with 400 and
	// BadDeviceToken. One retry against the sandbox host recovers it.
	if !result.Delivered && result.StatusCode == http.StatusBadRequest && result.Reason == ReasonBadDeviceToken {
		retry, err := c.post(ctx, c.sandboxHost, deviceToken, bearer, payload)
		if err != nil {
			return nil, err
		}
		retry.Environment = EnvironmentSandbox
		return retry, nil
	}

	return result, nil
}

func (c *Client) post(ctx context.Context, host, deviceToken, bearer string, payload []byte) (*Result, error) {
	url := fmt.Sprintf("%s/3/device/%s", host, deviceToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create apns request: %w", err)
	}

	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", c.topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apns request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read apns response: %w", err)
	}

	// APNs only ever answers 200 on success, but the contract is "any
	// success status", so the check covers the full 2xx range.
	result := &Result{
		Delivered:  resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	if !result.Delivered {
		var parsed errorBody
		if err := json.Unmarshal(body, &parsed); err == nil {
			result.Reason = parsed.Reason
		}
	}

	return result, nil
}
