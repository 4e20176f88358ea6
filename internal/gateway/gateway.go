package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvald/veloguard/internal/handshake"
	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/protocol"
	"github.com/rvald/veloguard/internal/session"
)

// GatewayConfig configures the gateway.
type GatewayConfig struct {
	Server   ServerConfig
	Listener *listener.Listener
	Sessions *session.Registry // nil creates an empty registry
	Logger   *slog.Logger      // nil uses slog.Default()
}

// Gateway ties the WebSocket server to the handshake listener. Each
// authenticated shim forwards its host's handshake and login events here
// and applies the verdicts it gets back.
type Gateway struct {
	config   GatewayConfig
	server   *Server
	listener *listener.Listener
	sessions *session.Registry
	logger   *slog.Logger
	now      func() time.Time
	conns    map[*Conn]bool
	connsMu  sync.Mutex
}

// New creates and wires up a new Gateway.
func New(config GatewayConfig) (*Gateway, error) {
	if config.Listener == nil {
		return nil, fmt.Errorf("gateway: listener is required")
	}

	gw := &Gateway{
		config:   config,
		listener: config.Listener,
		sessions: config.Sessions,
		logger:   config.Logger,
		now:      time.Now,
		conns:    make(map[*Conn]bool),
	}
	if gw.sessions == nil {
		gw.sessions = session.NewRegistry()
	}
	if gw.logger == nil {
		gw.logger = slog.Default()
	}
	gw.logger = gw.logger.With("component", "gateway")
	if gw.config.Server.SessionTTL <= 0 {
		gw.config.Server.SessionTTL = 30 * time.Second
	}

	gw.server = NewServer(gw.config.Server, gw)
	return gw, nil
}

// Run starts the gateway server and tick loop. Blocks until ctx is cancelled.
func (gw *Gateway) Run(ctx context.Context) error {
	if gw.config.Server.TickInterval > 0 {
		go gw.tickLoop(ctx)
	}
	return gw.server.ListenAndServe(ctx)
}

// Addr returns the listen address once the server is ready.
func (gw *Gateway) Addr() string { return gw.server.Addr() }

// Sessions returns the gateway's session registry.
func (gw *Gateway) Sessions() *session.Registry { return gw.sessions }

// Shutdown sends a shutdown event to all connections and gracefully stops the server.
func (gw *Gateway) Shutdown(ctx context.Context) error {
	gw.broadcast(protocol.EventShutdown, nil)
	return gw.server.Shutdown(ctx)
}

// TokensReloaded publishes a new token count to metrics and shims.
func (gw *Gateway) TokensReloaded(count int) {
	ActiveTokens.Set(float64(count))
	gw.broadcast(protocol.EventTokensReloaded, protocol.TokensReloaded{Count: count})
}

// --- ConnHandler implementation ---

func (gw *Gateway) OnAuthenticated(conn *Conn) error {
	gw.connsMu.Lock()
	gw.conns[conn] = true
	gw.connsMu.Unlock()

	ConnectedShims.Inc()
	gw.logger.Info("shim connected", "conn", conn.ConnID, "client", conn.ClientID(), "remote", conn.RemoteAddr)
	return nil
}

func (gw *Gateway) OnRequest(conn *Conn, req *protocol.RequestFrame) error {
	switch req.Method {
	case protocol.MethodHandshakeVerify:
		return gw.handleVerify(conn, req)
	case protocol.MethodLoginCheck:
		return gw.handleLoginCheck(conn, req)
	case protocol.MethodConnClose:
		return gw.handleConnClose(conn, req)
	default:
		return conn.SendError(req.ID, "UNKNOWN_METHOD", fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (gw *Gateway) OnDisconnected(conn *Conn) {
	gw.connsMu.Lock()
	delete(gw.conns, conn)
	gw.connsMu.Unlock()

	ConnectedShims.Dec()
	dropped := gw.sessions.RemoveOwner(conn.ConnID)
	Sessions.Set(float64(gw.sessions.Len()))
	gw.logger.Info("shim disconnected", "conn", conn.ConnID, "client", conn.ClientID(), "sessions_dropped", dropped)
}

// --- request handlers ---

func (gw *Gateway) handleVerify(conn *Conn, req *protocol.RequestFrame) error {
	var p protocol.VerifyParams
	if err := protocol.DecodeParams(req, &p); err != nil {
		return conn.SendError(req.ID, "INVALID_JSON", err.Error())
	}
	if p.ConnID == "" {
		return conn.SendError(req.ID, "INVALID_PARAMS", "connId is required")
	}

	sess := gw.sessions.GetOrCreate(conn.ConnID, p.ConnID, p.RemoteAddr, gw.now())
	ev := &verifyEvent{params: p, session: sess}

	var hev listener.HandshakeEvent = ev
	if p.RemoteAddr != "" {
		hev = addressedVerifyEvent{ev}
	}

	switch r := gw.listener.OnHandshake(hev).(type) {
	case handshake.Success:
		ev.result.OK = true
	case handshake.Fail:
		ev.result.Reason = string(r.Reason)
		gw.sessions.Remove(conn.ConnID, p.ConnID)
	}
	Sessions.Set(float64(gw.sessions.Len()))

	return conn.SendResult(req.ID, ev.result)
}

func (gw *Gateway) handleLoginCheck(conn *Conn, req *protocol.RequestFrame) error {
	var p protocol.LoginCheckParams
	if err := protocol.DecodeParams(req, &p); err != nil {
		return conn.SendError(req.ID, "INVALID_JSON", err.Error())
	}
	if p.ConnID == "" {
		return conn.SendError(req.ID, "INVALID_PARAMS", "connId is required")
	}

	sess, _ := gw.sessions.Get(conn.ConnID, p.ConnID)
	ev := &loginEvent{session: sess, result: protocol.LoginCheckResult{Allowed: true}}
	gw.listener.OnLogin(ev)

	// The session has served its purpose once the login stage is decided.
	gw.sessions.Remove(conn.ConnID, p.ConnID)
	Sessions.Set(float64(gw.sessions.Len()))

	return conn.SendResult(req.ID, ev.result)
}

func (gw *Gateway) handleConnClose(conn *Conn, req *protocol.RequestFrame) error {
	var p protocol.ConnCloseParams
	if err := protocol.DecodeParams(req, &p); err != nil {
		return conn.SendError(req.ID, "INVALID_JSON", err.Error())
	}
	removed := gw.sessions.Remove(conn.ConnID, p.ConnID)
	Sessions.Set(float64(gw.sessions.Len()))
	return conn.SendResult(req.ID, map[string]bool{"removed": removed})
}

// --- tick & broadcast ---

func (gw *Gateway) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(gw.config.Server.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := gw.sessions.PruneExpired(gw.now(), gw.config.Server.SessionTTL); n > 0 {
				gw.logger.Debug("pruned expired sessions", "count", n)
			}
			Sessions.Set(float64(gw.sessions.Len()))
			gw.broadcast(protocol.EventTick, map[string]any{"ts": gw.now().Unix()})
		}
	}
}

func (gw *Gateway) broadcast(event string, payload any) {
	gw.connsMu.Lock()
	conns := make([]*Conn, 0, len(gw.conns))
	for c := range gw.conns {
		conns = append(conns, c)
	}
	gw.connsMu.Unlock()

	for _, c := range conns {
		c.SendEvent(event, payload)
	}
}
