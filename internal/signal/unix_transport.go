package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// maxLineSize bounds one JSON-RPC line; inline attachments can be large.
const maxLineSize = 64 * 1024 * 1024

// UnixSocketTransport implements Transport over signal-cli's JSON-RPC UNIX socket.
type UnixSocketTransport struct {
	socketPath string
	conn       net.Conn
	logger     *slog.Logger

	writeMu sync.Mutex

	// Request tracking
	requestID atomic.Uint64
	pending   map[string]chan *rpcResponse
	pendingMu sync.Mutex

	notifications chan *Notification

	closeOnce sync.Once
	done      chan struct{}
	stopCh    chan struct{}
}

// UnixOption configures a UnixSocketTransport.
type UnixOption func(*UnixSocketTransport)

// WithTransportLogger sets a custom logger.
func WithTransportLogger(logger *slog.Logger) UnixOption {
	return func(t *UnixSocketTransport) {
		t.logger = logger
	}
}

// NewUnixSocketTransport connects to the signal-cli daemon at socketPath.
func NewUnixSocketTransport(ctx context.Context, socketPath string, opts ...UnixOption) (*UnixSocketTransport, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signal-cli socket: %w", err)
	}

	t := &UnixSocketTransport{
		socketPath:    socketPath,
		conn:          conn,
		logger:        slog.Default(),
		pending:       make(map[string]chan *rpcResponse),
		notifications: make(chan *Notification, 100),
		done:          make(chan struct{}),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("component", "signal.transport"))

	go t.readLoop()

	return t, nil
}

// Call implements Transport.Call.
func (t *UnixSocketTransport) Call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	id := "req-" + strconv.FormatUint(t.requestID.Add(1), 10)

	data, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respChan := make(chan *rpcResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()

	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	t.writeMu.Lock()
	_, writeErr := t.conn.Write(append(data, '\n'))
	t.writeMu.Unlock()
	if writeErr != nil {
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for response: %w", ctx.Err())
	case <-t.done:
		return nil, fmt.Errorf("connection closed while waiting for %s response", method)
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, &RPCError{
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		return resp.Result, nil
	}
}

// readLoop continuously reads from the socket.
func (t *UnixSocketTransport) readLoop() {
	defer close(t.done)
	defer close(t.notifications)

	scanner := bufio.NewScanner(t.conn)
	scanner.Buffer(make([]byte, 1024*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err == nil && resp.ID != "" {
			t.pendingMu.Lock()
			if ch, ok := t.pending[resp.ID]; ok {
				select {
				case ch <- &resp:
				default:
				}
			}
			t.pendingMu.Unlock()
			continue
		}

		var notif Notification
		if err := json.Unmarshal(line, &notif); err == nil && notif.Method != "" {
			select {
			case t.notifications <- &notif:
			case <-t.stopCh:
				return
			}
			continue
		}

		t.logger.Debug("ignoring unparseable line", slog.Int("bytes", len(line)))
	}

	select {
	case <-t.stopCh:
	default:
		if err := scanner.Err(); err != nil {
			t.logger.Error("signal-cli connection lost", slog.Any("error", err))
		} else {
			t.logger.Warn("signal-cli closed the connection")
		}
	}
}

// Subscribe implements Transport.Subscribe. The channel closes when the
// connection ends.
func (t *UnixSocketTransport) Subscribe(_ context.Context) (<-chan *Notification, error) {
	return t.notifications, nil
}

// Close implements Transport.Close.
func (t *UnixSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.conn.Close()
		<-t.done
	})
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Internal types.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      string           `json:"id"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface for RPCError.
func (e *RPCError) Error() string {
	return "RPC error " + strconv.Itoa(e.Code) + ": " + e.Message
}
