package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Transport represents the underlying connection to signal-cli.
type Transport interface {
	// Call makes a JSON-RPC call
	Call(ctx context.Context, method string, params any) (*json.RawMessage, error)

	// Subscribe starts receiving notifications
	Subscribe(ctx context.Context) (<-chan *Notification, error)

	// Close closes the transport
	Close() error
}

// Notification represents a JSON-RPC notification.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// MockTransport implements Transport for testing. Calls are recorded with
// their params and answered from canned results.
type MockTransport struct {
	mu sync.RWMutex

	responses     map[string]*mockResponse
	calls         map[string][]any
	notifications chan *Notification
	closed        bool
}

type mockResponse struct {
	result *json.RawMessage
	err    error
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses:     make(map[string]*mockResponse),
		calls:         make(map[string][]any),
		notifications: make(chan *Notification, 100),
	}
}

// SetResult marshals v as the result for method.
func (m *MockTransport) SetResult(method string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal mock result: %w", err)
	}
	raw := json.RawMessage(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = &mockResponse{result: &raw}
	return nil
}

// SetError makes method fail with err.
func (m *MockTransport) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = &mockResponse{err: err}
}

// GetCalls returns all recorded params for method.
func (m *MockTransport) GetCalls(method string) []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]any, len(m.calls[method]))
	copy(out, m.calls[method])
	return out
}

// Call implements Transport.Call.
func (m *MockTransport) Call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	m.mu.Lock()
	m.calls[method] = append(m.calls[method], params)
	response := m.responses[method]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("no mock response configured for method: %s", method)
	}
	return response.result, response.err
}

// Subscribe implements Transport.Subscribe.
func (m *MockTransport) Subscribe(_ context.Context) (<-chan *Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("transport is closed")
	}
	return m.notifications, nil
}

// SimulateNotification queues a notification for subscribers.
func (m *MockTransport) SimulateNotification(notif *Notification) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.closed {
		m.notifications <- notif
	}
}

// SimulateEnvelope wraps env in a "receive" notification.
func (m *MockTransport) SimulateEnvelope(env *Envelope) error {
	params, err := json.Marshal(map[string]any{"envelope": env})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	m.SimulateNotification(&Notification{JSONRPC: "2.0", Method: "receive", Params: params})
	return nil
}

// Close implements Transport.Close.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.notifications)
	}
	return nil
}

// IsClosed returns whether the transport is closed.
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
