package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Client speaks signal-cli's JSON-RPC methods.
type Client interface {
	// Send sends a message, optionally quoting another and carrying attachments.
	Send(ctx context.Context, req *SendRequest) (*SendResponse, error)

	// SendReaction reacts to a message with an emoji.
	SendReaction(ctx context.Context, req *ReactionRequest) error

	// RemoteDelete deletes one of the account's own messages for everyone.
	RemoteDelete(ctx context.Context, req *DeleteRequest) error

	// GetAttachment returns the raw bytes of a received attachment.
	GetAttachment(ctx context.Context, req *AttachmentRequest) ([]byte, error)

	// Subscribe starts receiving incoming messages
	Subscribe(ctx context.Context) (<-chan *Envelope, error)

	// Close closes the client connection
	Close() error
}

// Target is a conversation: a set of recipients or a group.
type Target struct {
	Recipients []string
	GroupID    string
}

func (t Target) apply(params map[string]any) error {
	switch {
	case len(t.Recipients) > 0:
		params["recipient"] = t.Recipients
	case t.GroupID != "":
		params["groupId"] = t.GroupID
	default:
		return fmt.Errorf("either recipients or groupId must be specified")
	}
	return nil
}

// SendRequest represents a request to send a message.
type SendRequest struct {
	Target
	Message string
	// Attachments are data URIs, see DataURI.
	Attachments []string

	QuoteTimestamp int64
	QuoteAuthor    string
	QuoteMessage   string
}

// SendResponse represents the response from a send operation.
type SendResponse struct {
	Timestamp int64 `json:"timestamp"`
}

// ReactionRequest targets a message with an emoji.
type ReactionRequest struct {
	Target
	Emoji           string
	TargetAuthor    string
	TargetTimestamp int64
}

// DeleteRequest targets one of the account's messages.
type DeleteRequest struct {
	Target
	TargetTimestamp int64
}

// AttachmentRequest identifies a stored attachment.
type AttachmentRequest struct {
	Target
	ID string
}

// DataURI encodes data the way signal-cli accepts inline attachments.
func DataURI(contentType, filename string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	uri := "data:" + contentType
	if filename != "" {
		uri += ";filename=" + filename
	}
	return uri + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// client implements the Client interface.
type client struct {
	transport Transport
	account   string // Optional account for multi-account mode
}

// NewClient creates a new Signal client.
func NewClient(transport Transport, opts ...ClientOption) Client {
	c := &client{
		transport: transport,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ClientOption configures the client.
type ClientOption func(*client)

// WithAccount sets the account for multi-account mode.
func WithAccount(account string) ClientOption {
	return func(c *client) {
		c.account = account
	}
}

func (c *client) params(target *Target) (map[string]any, error) {
	params := make(map[string]any)
	if c.account != "" {
		params["account"] = c.account
	}
	if target != nil {
		if err := target.apply(params); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Send implements Client.Send.
func (c *client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	params, err := c.params(&req.Target)
	if err != nil {
		return nil, err
	}

	params["message"] = req.Message
	if len(req.Attachments) > 0 {
		params["attachments"] = req.Attachments
	}
	if req.QuoteTimestamp != 0 {
		params["quoteTimestamp"] = req.QuoteTimestamp
		params["quoteAuthor"] = req.QuoteAuthor
		if req.QuoteMessage != "" {
			params["quoteMessage"] = req.QuoteMessage
		}
	}

	result, err := c.transport.Call(ctx, "send", params)
	if err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("invalid response: empty result")
	}

	var resp SendResponse
	if err := json.Unmarshal(*result, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Timestamp == 0 {
		return nil, fmt.Errorf("invalid response: missing timestamp")
	}

	return &resp, nil
}

// SendReaction implements Client.SendReaction.
func (c *client) SendReaction(ctx context.Context, req *ReactionRequest) error {
	params, err := c.params(&req.Target)
	if err != nil {
		return err
	}
	params["emoji"] = req.Emoji
	params["targetAuthor"] = req.TargetAuthor
	params["targetTimestamp"] = req.TargetTimestamp

	if _, err := c.transport.Call(ctx, "sendReaction", params); err != nil {
		return fmt.Errorf("sendReaction failed: %w", err)
	}
	return nil
}

// RemoteDelete implements Client.RemoteDelete.
func (c *client) RemoteDelete(ctx context.Context, req *DeleteRequest) error {
	params, err := c.params(&req.Target)
	if err != nil {
		return err
	}
	params["targetTimestamp"] = req.TargetTimestamp

	if _, err := c.transport.Call(ctx, "remoteDelete", params); err != nil {
		return fmt.Errorf("remoteDelete failed: %w", err)
	}
	return nil
}

// GetAttachment implements Client.GetAttachment.
func (c *client) GetAttachment(ctx context.Context, req *AttachmentRequest) ([]byte, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("attachment id cannot be empty")
	}
	params, err := c.params(nil)
	if err != nil {
		return nil, err
	}
	params["id"] = req.ID
	if req.GroupID != "" {
		params["groupId"] = req.GroupID
	} else if len(req.Recipients) > 0 {
		params["recipient"] = req.Recipients[0]
	}

	result, err := c.transport.Call(ctx, "getAttachment", params)
	if err != nil {
		return nil, fmt.Errorf("getAttachment failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("invalid response: empty result")
	}

	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(*result, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return data, nil
}

// Subscribe implements Client.Subscribe.
func (c *client) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	notifications, err := c.transport.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	envelopes := make(chan *Envelope, 10)
	go c.processNotifications(ctx, notifications, envelopes)

	return envelopes, nil
}

// processNotifications handles incoming notifications and converts them to envelopes.
func (c *client) processNotifications(ctx context.Context, notifications <-chan *Notification, envelopes chan<- *Envelope) {
	defer close(envelopes)

	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			if notif.Method != "receive" {
				continue
			}
			envelope := parseEnvelope(notif)
			if envelope == nil {
				continue
			}
			select {
			case envelopes <- envelope:
			case <-ctx.Done():
				return
			}
		}
	}
}

// parseEnvelope extracts an envelope from a notification.
func parseEnvelope(notif *Notification) *Envelope {
	var params struct {
		Envelope *Envelope `json:"envelope"`
	}

	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return nil
	}

	return params.Envelope
}

// Close implements Client.Close.
func (c *client) Close() error {
	return c.transport.Close()
}

// MockClient implements Client for testing.
type MockClient struct {
	mu sync.Mutex

	SendError       error
	ReactionError   error
	DeleteError     error
	AttachmentError error
	// Attachments maps attachment ids to content for GetAttachment.
	Attachments map[string][]byte

	SentMessages []SendRequest
	// SentTimestamps holds the timestamp returned for each send.
	SentTimestamps []int64
	Reactions      []ReactionRequest
	Deletes        []DeleteRequest
	Downloads      []AttachmentRequest

	incomingMessages chan *Envelope
	nextTimestamp    int64
	closed           bool
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		Attachments:      make(map[string][]byte),
		incomingMessages: make(chan *Envelope, 100),
		nextTimestamp:    time.Now().UnixMilli(),
	}
}

// Send implements Client.Send.
func (m *MockClient) Send(_ context.Context, req *SendRequest) (*SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendError != nil {
		return nil, m.SendError
	}
	m.SentMessages = append(m.SentMessages, *req)
	m.nextTimestamp++
	m.SentTimestamps = append(m.SentTimestamps, m.nextTimestamp)
	return &SendResponse{Timestamp: m.nextTimestamp}, nil
}

// SendReaction implements Client.SendReaction.
func (m *MockClient) SendReaction(_ context.Context, req *ReactionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReactionError != nil {
		return m.ReactionError
	}
	m.Reactions = append(m.Reactions, *req)
	return nil
}

// RemoteDelete implements Client.RemoteDelete.
func (m *MockClient) RemoteDelete(_ context.Context, req *DeleteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.Deletes = append(m.Deletes, *req)
	return nil
}

// GetAttachment implements Client.GetAttachment.
func (m *MockClient) GetAttachment(_ context.Context, req *AttachmentRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Downloads = append(m.Downloads, *req)
	if m.AttachmentError != nil {
		return nil, m.AttachmentError
	}
	data, ok := m.Attachments[req.ID]
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", req.ID)
	}
	return data, nil
}

// Subscribe implements Client.Subscribe.
func (m *MockClient) Subscribe(_ context.Context) (<-chan *Envelope, error) {
	return m.incomingMessages, nil
}

// SimulateIncomingMessage simulates an incoming message.
func (m *MockClient) SimulateIncomingMessage(env *Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.incomingMessages <- env
	}
}

// Sent returns a copy of the recorded sends.
func (m *MockClient) Sent() []SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendRequest, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// Close implements Client.Close.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.incomingMessages)
	}
	return nil
}
