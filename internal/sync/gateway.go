package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// requestTimeout bounds every network call; expiry is a transport failure
const requestTimeout = 30 * time.Second

// TransportError means no response reached us: connection refused, timeout,
// or an unreadable reply. The queue and checkpoint must not be touched.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Gateway is the network transport to the backend
type Gateway interface {
	Sync(ctx context.Context, serverURL string, req *SyncRequest) (*SyncResponse, error)
	Heartbeat(ctx context.Context, serverURL string, req *HeartbeatRequest) error
}

// HTTPGateway talks JSON over HTTP to the attendance backend
type HTTPGateway struct {
	client *http.Client
}

// NewHTTPGateway creates a gateway with the fixed request timeout
func NewHTTPGateway() *HTTPGateway {
	return &HTTPGateway{
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Sync ships an event batch and returns the backend's verdict
func (g *HTTPGateway) Sync(ctx context.Context, serverURL string, req *SyncRequest) (*SyncResponse, error) {
	body, err := g.post(ctx, serverURL+"/api/terminal/sync", req)
	if err != nil {
		return nil, err
	}

	var resp SyncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &resp, nil
}

// Heartbeat pings the backend with terminal vitals
func (g *HTTPGateway) Heartbeat(ctx context.Context, serverURL string, req *HeartbeatRequest) error {
	_, err := g.post(ctx, serverURL+"/api/terminal/heartbeat", req)
	return err
}

func (g *HTTPGateway) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, &TransportError{Err: err}
	}
	return buf.Bytes(), nil
}
