package gateway

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/protocol"
	"github.com/rvald/veloguard/internal/ratelimit"
	"github.com/rvald/veloguard/internal/token"
)

const (
	testUUID   = "069a79f444e94726a5befca90e38aaf5"
	testToken  = "secretToken"
	shimSecret = "shim-secret"
)

var validHandshake = strings.Join([]string{"play.example.com", "127.0.0.1", testUUID, "[]", testToken}, "\x00")

type MockWebSocket struct {
	Incoming chan []byte // test writes here → conn reads
	Outgoing chan []byte // conn writes here → test reads
	closed   bool
	mu       sync.Mutex
}

func NewMockWebSocket() *MockWebSocket {
	return &MockWebSocket{
		Incoming: make(chan []byte, 10),
		Outgoing: make(chan []byte, 10),
	}
}

func (m *MockWebSocket) ReadMessage() (int, []byte, error) {
	msg, ok := <-m.Incoming
	if !ok {
		return 0, nil, fmt.Errorf("connection closed")
	}
	return textMessage, msg, nil
}

func (m *MockWebSocket) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("connection closed")
	}
	m.Outgoing <- data
	return nil
}

func (m *MockWebSocket) SetReadLimit(limit int64) {}

func (m *MockWebSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.Incoming)
	}
	return nil
}

func (m *MockWebSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type MockConnHandler struct {
	AuthenticatedCalls []*Conn
	Requests           []protocol.RequestFrame
	DisconnectedCalls  []*Conn
	mu                 sync.Mutex
}

func (h *MockConnHandler) OnAuthenticated(conn *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AuthenticatedCalls = append(h.AuthenticatedCalls, conn)
	return nil
}

func (h *MockConnHandler) OnRequest(conn *Conn, req *protocol.RequestFrame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Requests = append(h.Requests, *req)
	return nil
}

func (h *MockConnHandler) OnDisconnected(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.DisconnectedCalls = append(h.DisconnectedCalls, conn)
}

func (h *MockConnHandler) counts() (auth, reqs, disc int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.AuthenticatedCalls), len(h.Requests), len(h.DisconnectedCalls)
}

// readFrame waits for the next outgoing frame.
func readFrame(t *testing.T, ws *MockWebSocket) any {
	t.Helper()
	select {
	case data := <-ws.Outgoing:
		frame, err := protocol.ParseFrame(data)
		require.NoError(t, err)
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func readResponse(t *testing.T, ws *MockWebSocket) *protocol.ResponseFrame {
	t.Helper()
	res, ok := readFrame(t, ws).(*protocol.ResponseFrame)
	require.True(t, ok, "expected response frame")
	return res
}

func connectFrame(t *testing.T, id string, auth *protocol.ConnectAuth) []byte {
	t.Helper()
	data, err := protocol.MarshalRequest(id, protocol.MethodConnect, protocol.ConnectParams{
		MinProtocol: protocol.ServerProtocol,
		MaxProtocol: protocol.ServerProtocol,
		Client:      protocol.ClientInfo{ID: "lobby-1", Version: "1.0.0", Platform: "paper"},
		Auth:        auth,
	})
	require.NoError(t, err)
	return data
}

func requestFrame(t *testing.T, id, method string, params any) []byte {
	t.Helper()
	data, err := protocol.MarshalRequest(id, method, params)
	require.NoError(t, err)
	return data
}

func newTestListener(t *testing.T, tokens ...string) (*listener.Listener, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := listener.New(token.NewStore(tokens), listener.Config{
		ExtraProtection: true,
		Limiter:         ratelimit.New(100, time.Minute),
		Logger:          slog.New(slog.NewTextHandler(&buf, nil)),
		Recorder:        Recorder{},
	})
	return l, &buf
}
