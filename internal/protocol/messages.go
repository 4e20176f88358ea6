package protocol

import "fmt"

// ServerProtocol is the protocol version this server speaks.
const ServerProtocol = 1

// Request methods.
const (
	MethodConnect         = "connect"
	MethodHandshakeVerify = "handshake.verify"
	MethodLoginCheck      = "login.check"
	MethodConnClose       = "conn.close"
)

// Server events.
const (
	EventChallenge      = "connect.challenge"
	EventTick           = "tick"
	EventTokensReloaded = "tokens.reloaded"
	EventShutdown       = "shutdown"
)

// ---------- connect ----------

// ConnectParams is sent by a shim as its first request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the shim and the host it runs in.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"` // host runtime, e.g. "paper"
}

type ConnectAuth struct {
	Token string `json:"token"`
}

// ValidateConnect checks that the server's protocol version falls within
// the client's advertised [MinProtocol, MaxProtocol] range.
func ValidateConnect(params ConnectParams) error {
	if ServerProtocol < params.MinProtocol || ServerProtocol > params.MaxProtocol {
		return &FrameError{
			Code:    "PROTOCOL_MISMATCH",
			Message: fmt.Sprintf("server protocol %d not in client range [%d, %d]", ServerProtocol, params.MinProtocol, params.MaxProtocol),
		}
	}
	return nil
}

// HelloOk is the payload of a successful connect response.
type HelloOk struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
	Policy   Policy     `json:"policy"`
}

type ServerInfo struct {
	Version string `json:"version"`
	ConnID  string `json:"connId"`
}

type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

type Policy struct {
	MaxPayload     int   `json:"maxPayload"`
	TickIntervalMs int64 `json:"tickIntervalMs"`
	SessionTTLMs   int64 `json:"sessionTtlMs"`
}

// ---------- handshake.verify ----------

// VerifyParams carries one raw forwarded handshake from the host.
type VerifyParams struct {
	ConnID     string `json:"connId"`
	Handshake  string `json:"handshake"`
	RemoteAddr string `json:"remoteAddr,omitempty"` // real socket address, when the host knows it
}

// VerifyResult tells the host what to do with the connection. On OK the
// identity fields replace the connection's own; otherwise the host kicks
// with Message.
type VerifyResult struct {
	OK                    bool   `json:"ok"`
	ServerHostname        string `json:"serverHostname,omitempty"`
	SocketAddressHostname string `json:"socketAddressHostname,omitempty"`
	UniqueID              string `json:"uniqueId,omitempty"`
	PropertiesJSON        string `json:"propertiesJson,omitempty"`
	Reason                string `json:"reason,omitempty"`
	Message               string `json:"message,omitempty"`
}

// ---------- login.check / conn.close ----------

type LoginCheckParams struct {
	ConnID string `json:"connId"`
}

type LoginCheckResult struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

type ConnCloseParams struct {
	ConnID string `json:"connId"`
}

// TokensReloaded is the payload of the tokens.reloaded event.
type TokensReloaded struct {
	Count int `json:"count"`
}
