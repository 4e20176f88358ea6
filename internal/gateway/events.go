package gateway

import (
	"github.com/google/uuid"

	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/protocol"
	"github.com/rvald/veloguard/internal/session"
)

// verifyEvent adapts a handshake.verify request to listener.HandshakeEvent.
// Mutations are collected into the response sent back to the shim.
type verifyEvent struct {
	params  protocol.VerifyParams
	session *session.Session
	result  protocol.VerifyResult
}

func (e *verifyEvent) OriginalHandshake() string { return e.params.Handshake }

func (e *verifyEvent) Session() listener.Attributes {
	if e.session == nil {
		return nil
	}
	return e.session
}

func (e *verifyEvent) SetServerHostname(h string)        { e.result.ServerHostname = h }
func (e *verifyEvent) SetSocketAddressHostname(h string) { e.result.SocketAddressHostname = h }
func (e *verifyEvent) SetUniqueID(id uuid.UUID)          { e.result.UniqueID = id.String() }
func (e *verifyEvent) SetPropertiesJSON(p string)        { e.result.PropertiesJSON = p }

func (e *verifyEvent) Fail(message string) {
	e.result.OK = false
	e.result.Message = message
}

// addressedVerifyEvent is a verifyEvent whose shim reported the real
// socket address.
type addressedVerifyEvent struct {
	*verifyEvent
}

func (e addressedVerifyEvent) OriginalSocketAddressHostname() (string, error) {
	return e.params.RemoteAddr, nil
}

// loginEvent adapts a login.check request to listener.LoginEvent.
type loginEvent struct {
	session *session.Session
	result  protocol.LoginCheckResult
}

func (e *loginEvent) Session() listener.Attributes {
	if e.session == nil {
		return nil
	}
	return e.session
}

func (e *loginEvent) Disallow(message string) {
	e.result.Allowed = false
	e.result.Message = message
}
