package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvald/veloguard/internal/protocol"
)

// MaxPayload bounds a single inbound frame. A forwarded handshake is at
// most handshake.MaxLength bytes; JSON escaping of NUL can grow it sixfold.
const MaxPayload = 1 << 20

// textMessage is the WebSocket text frame opcode.
const textMessage = 1

// ConnState represents the lifecycle state of a connection.
type ConnState string

const (
	StateConnecting    ConnState = "connecting"
	StateAuthenticated ConnState = "authenticated"
	StateClosed        ConnState = "closed"
)

// WebSocket is the interface for the underlying WebSocket connection.
type WebSocket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	Close() error
}

// ConnHandler receives lifecycle events from a Conn.
type ConnHandler interface {
	OnAuthenticated(conn *Conn) error
	OnRequest(conn *Conn, req *protocol.RequestFrame) error
	OnDisconnected(conn *Conn)
}

// Conn manages a single shim connection through the challenge, the
// connect request and the authenticated request loop.
type Conn struct {
	ws            WebSocket
	config        ServerConfig
	handler       ConnHandler
	logger        *slog.Logger
	State         ConnState
	ConnID        string
	RemoteAddr    string
	ConnectParams *protocol.ConnectParams
	mu            sync.Mutex
	writeMu       sync.Mutex
}

// NewConn creates a new connection in the connecting state.
func NewConn(ws WebSocket, config ServerConfig, handler ConnHandler) *Conn {
	id := generateID()
	return &Conn{
		ws:      ws,
		config:  config,
		handler: handler,
		logger:  slog.Default().With("component", "conn", "conn", id),
		State:   StateConnecting,
		ConnID:  id,
	}
}

// SendEvent sends an event frame to this connection (thread-safe).
func (c *Conn) SendEvent(event string, payload any) error {
	data, err := protocol.MarshalEvent(event, payload)
	if err != nil {
		return err
	}
	return c.writeMessage(data)
}

// SendResult sends a successful response for request id.
func (c *Conn) SendResult(id string, payload any) error {
	data, err := protocol.MarshalResponse(id, true, payload, nil)
	if err != nil {
		return err
	}
	return c.writeMessage(data)
}

// SendError sends a failed response for request id.
func (c *Conn) SendError(id, code, message string) error {
	data, err := protocol.MarshalResponse(id, false, nil, &protocol.ErrorShape{
		Code:    code,
		Message: message,
	})
	if err != nil {
		return err
	}
	return c.writeMessage(data)
}

// ClientID returns the shim's self-reported ID, or "" before connect.
func (c *Conn) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectParams == nil {
		return ""
	}
	return c.ConnectParams.Client.ID
}

func (c *Conn) writeMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(textMessage, data)
}

// Run drives the connection lifecycle: challenge → connect → read loop.
// It blocks until the connection is closed or the context is cancelled.
func (c *Conn) Run(ctx context.Context) {
	defer c.shutdown()

	// Close websocket on context cancellation to unblock reads.
	go func() {
		<-ctx.Done()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(MaxPayload)

	if err := c.sendChallenge(); err != nil {
		return
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return
	}
	if err := c.processConnect(data); err != nil {
		c.logger.Debug("connect rejected", "error", err)
		return
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.processRequest(data)
	}
}

func (c *Conn) sendChallenge() error {
	return c.SendEvent(protocol.EventChallenge, map[string]any{
		"nonce": generateID(),
		"ts":    time.Now().Unix(),
	})
}

func (c *Conn) processConnect(data []byte) error {
	frame, err := protocol.ParseFrame(data)
	if err != nil {
		IncError("protocol")
		return err
	}

	req, ok := frame.(*protocol.RequestFrame)
	if !ok {
		IncError("protocol")
		return fmt.Errorf("expected request frame")
	}

	if req.Method != protocol.MethodConnect {
		IncError("protocol")
		c.SendError(req.ID, "INVALID_METHOD", "first request must be connect")
		return fmt.Errorf("first request must be connect")
	}

	var params protocol.ConnectParams
	if err := protocol.DecodeParams(req, &params); err != nil {
		IncError("protocol")
		c.SendError(req.ID, "INVALID_JSON", err.Error())
		return err
	}

	if err := protocol.ValidateConnect(params); err != nil {
		IncError("protocol")
		code, msg := errorCode(err, "INVALID_REQUEST")
		c.SendError(req.ID, code, msg)
		return err
	}

	result := Authenticate(c.config.Auth, params.Auth)
	if !result.OK {
		IncError("auth")
		c.SendError(req.ID, "UNAUTHORIZED", result.Reason)
		return fmt.Errorf("auth failed: %s", result.Reason)
	}

	c.mu.Lock()
	c.ConnectParams = &params
	c.mu.Unlock()

	hello := protocol.HelloOk{
		Protocol: protocol.ServerProtocol,
		Server:   protocol.ServerInfo{Version: c.config.Version, ConnID: c.ConnID},
		Features: protocol.Features{
			Methods: []string{protocol.MethodHandshakeVerify, protocol.MethodLoginCheck, protocol.MethodConnClose},
			Events:  []string{protocol.EventTick, protocol.EventTokensReloaded, protocol.EventShutdown},
		},
		Policy: protocol.Policy{
			MaxPayload:     MaxPayload,
			TickIntervalMs: c.config.TickInterval.Milliseconds(),
			SessionTTLMs:   c.config.SessionTTL.Milliseconds(),
		},
	}
	if err := c.SendResult(req.ID, hello); err != nil {
		return err
	}

	c.mu.Lock()
	c.State = StateAuthenticated
	c.mu.Unlock()

	c.logger = c.logger.With("client", params.Client.ID, "platform", params.Client.Platform)
	return c.handler.OnAuthenticated(c)
}

func (c *Conn) processRequest(data []byte) {
	frame, err := protocol.ParseFrame(data)
	if err != nil {
		IncError("protocol")
		c.logger.Debug("dropping malformed frame", "error", err)
		return
	}

	req, ok := frame.(*protocol.RequestFrame)
	if !ok {
		return
	}

	if err := c.handler.OnRequest(c, req); err != nil {
		IncError("internal")
		c.logger.Warn("request failed", "method", req.Method, "error", err)
	}
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	wasAuthenticated := c.State == StateAuthenticated
	c.State = StateClosed
	c.mu.Unlock()

	c.ws.Close()

	if wasAuthenticated {
		c.handler.OnDisconnected(c)
	}
}

// errorCode extracts the wire code and message from a *protocol.FrameError
// anywhere in err's chain, or uses fallback and err's text.
func errorCode(err error, fallback string) (code, message string) {
	var fe *protocol.FrameError
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	return fallback, err.Error()
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
