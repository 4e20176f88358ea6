// Package listener applies handshake verification to host connection
// events. It is the only place that turns a verification result into
// host-visible effects: rewriting identity fields, failing the connection,
// and logging denials under a rate limit.
package listener

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rvald/veloguard/internal/handshake"
	"github.com/rvald/veloguard/internal/ratelimit"
)

// AttrVerified is set to true on a connection whose handshake was verified.
const AttrVerified = "veloguard.verified"

// Attributes is per-connection state owned by the host.
type Attributes interface {
	Set(key string, value any)
	Get(key string) (any, bool)
}

// HandshakeEvent is a host handshake event for one inbound connection.
type HandshakeEvent interface {
	OriginalHandshake() string
	Session() Attributes

	SetServerHostname(host string)
	SetSocketAddressHostname(host string)
	SetUniqueID(id uuid.UUID)
	SetPropertiesJSON(props string)

	// Fail rejects the connection with a message shown to the client.
	Fail(message string)
}

// OriginalAddresser is implemented by events whose host can report the
// address the client really connected from. Hosts that cannot simply do
// not implement it.
type OriginalAddresser interface {
	OriginalSocketAddressHostname() (string, error)
}

// LoginEvent is a later stage of the same connection.
type LoginEvent interface {
	Session() Attributes
	Disallow(message string)
}

// Messages are the kick messages shown on failure.
type Messages struct {
	InvalidToken string `yaml:"invalid_token"`
	NoData       string `yaml:"no_data"`
}

// DefaultMessages returns the built-in kick messages.
func DefaultMessages() Messages {
	return Messages{
		InvalidToken: "Unable to authenticate - invalid token.",
		NoData:       "Unable to authenticate - no data was forwarded by the proxy.",
	}
}

// Recorder receives handshake outcomes for metrics.
type Recorder interface {
	Handshake(result string)
	DenialLogged()
	DenialSuppressed()
}

type nopRecorder struct{}

func (nopRecorder) Handshake(string)  {}
func (nopRecorder) DenialLogged()     {}
func (nopRecorder) DenialSuppressed() {}

// Config configures a Listener.
type Config struct {
	Messages        Messages
	Verbose         bool
	ExtraProtection bool
	Limiter         *ratelimit.Limiter // nil uses ratelimit defaults
	Logger          *slog.Logger       // nil uses slog.Default()
	Recorder        Recorder           // nil records nothing
}

// Listener verifies handshakes and applies the outcome to host events.
type Listener struct {
	tokens   handshake.TokenChecker
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	recorder Recorder

	messages        atomic.Pointer[Messages]
	verbose         atomic.Bool
	extraProtection atomic.Bool
}

// New creates a Listener checking tokens against the given checker.
func New(tokens handshake.TokenChecker, cfg Config) *Listener {
	l := &Listener{
		tokens:   tokens,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if l.limiter == nil {
		l.limiter = ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultInterval)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "listener")
	if l.recorder == nil {
		l.recorder = nopRecorder{}
	}
	l.SetMessages(cfg.Messages)
	l.verbose.Store(cfg.Verbose)
	l.extraProtection.Store(cfg.ExtraProtection)
	return l
}

// SetMessages replaces the kick messages. Empty fields fall back to defaults.
func (l *Listener) SetMessages(m Messages) {
	def := DefaultMessages()
	if m.InvalidToken == "" {
		m.InvalidToken = def.InvalidToken
	}
	if m.NoData == "" {
		m.NoData = def.NoData
	}
	l.messages.Store(&m)
}

// Messages returns the active kick messages.
func (l *Listener) Messages() Messages { return *l.messages.Load() }

// SetVerbose toggles connection descriptions in denial logs.
func (l *Listener) SetVerbose(v bool) { l.verbose.Store(v) }

// SetExtraProtection toggles the login-time check.
func (l *Listener) SetExtraProtection(v bool) { l.extraProtection.Store(v) }

// OnHandshake verifies ev's forwarded data and applies the result.
func (l *Listener) OnHandshake(ev HandshakeEvent) handshake.Result {
	result := handshake.DecodeAndVerify(ev.OriginalHandshake(), l.tokens)

	switch r := result.(type) {
	case handshake.Fail:
		l.recorder.Handshake(resultLabel(r.Reason))
		l.logDenial(ev, r)

		msgs := l.Messages()
		if r.Reason == handshake.IncorrectToken {
			ev.Fail(msgs.InvalidToken)
		} else {
			ev.Fail(msgs.NoData)
		}

	case handshake.Success:
		l.recorder.Handshake("success")
		ev.SetServerHostname(r.ServerHostname)
		ev.SetSocketAddressHostname(r.SocketAddressHostname)
		ev.SetUniqueID(r.UniqueID)
		ev.SetPropertiesJSON(r.PropertiesJSON)
		if attrs := ev.Session(); attrs != nil {
			attrs.Set(AttrVerified, true)
		}
	}

	return result
}

// OnLogin rejects a login whose connection never passed OnHandshake. It
// guards hosts where the handshake stage can be skipped. Returns whether
// the login may proceed.
func (l *Listener) OnLogin(ev LoginEvent) bool {
	if !l.extraProtection.Load() {
		return true
	}
	if Verified(ev.Session()) {
		return true
	}
	ev.Disallow(l.Messages().NoData)
	return false
}

// Verified reports whether attrs carry a successful verification.
func Verified(attrs Attributes) bool {
	if attrs == nil {
		return false
	}
	v, ok := attrs.Get(AttrVerified)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (l *Listener) logDenial(ev HandshakeEvent, fail handshake.Fail) {
	d := l.limiter.Decide()
	if !d.Allowed {
		l.recorder.DenialSuppressed()
		return
	}
	l.recorder.DenialLogged()

	if d.Suppressed > 0 {
		l.logger.Warn("suppressed denial logs", "count", d.Suppressed, "interval", l.limiter.Interval())
	}

	ip := "unknown"
	if addr, ok := ev.(OriginalAddresser); ok {
		got, err := addr.OriginalSocketAddressHostname()
		if err != nil {
			l.logger.Error("unable to get original address", "error", err)
		} else if got != "" {
			ip = got
		}
	}

	attrs := []any{"ip", ip, "reason", string(fail.Reason)}
	if l.verbose.Load() {
		attrs = append(attrs, "connection", fail.DescribeConnection())
	}
	l.logger.Warn("denying connection", attrs...)
}

func resultLabel(r handshake.Reason) string {
	switch r {
	case handshake.IncorrectToken:
		return "incorrect_token"
	default:
		return "no_data"
	}
}
