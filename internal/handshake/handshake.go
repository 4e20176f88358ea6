// Package handshake decodes and verifies the identity data a proxy
// forwards to a backend through the legacy handshake hostname field.
//
// The forwarded string is a NUL-separated list:
//
//	serverHostname \0 socketAddressHostname \0 uuid [\0 propertiesJson ...] \0 token
//
// The first three fields are fixed, the last field is always the token, and
// whatever sits between them is re-joined as the properties JSON. The
// properties are passed through verbatim; interpreting them is the host's job.
package handshake

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// Delimiter separates forwarded fields.
	Delimiter = "\x00"

	// MinFields is host, address, uuid and token.
	MinFields = 4

	// MaxLength bounds the raw input. A protocol string is at most 32767
	// UTF-16 units, which is never more than four bytes each in UTF-8.
	MaxLength = 32767 * 4
)

// TokenChecker reports whether a candidate token is accepted.
type TokenChecker interface {
	Contains(candidate string) bool
}

// DecodeAndVerify parses raw and checks its token against tokens.
// It has no side effects and never panics; every malformed input maps to
// a Fail.
func DecodeAndVerify(raw string, tokens TokenChecker) Result {
	fail := func(r Reason) Result { return Fail{Reason: r, RawData: raw} }

	if raw == "" || len(raw) > MaxLength {
		return fail(NoData)
	}

	host, rest, ok := strings.Cut(raw, Delimiter)
	if !ok {
		return fail(NoData)
	}
	address, rest, ok := strings.Cut(rest, Delimiter)
	if !ok {
		return fail(NoData)
	}
	rawID, rest, ok := strings.Cut(rest, Delimiter)
	if !ok {
		return fail(NoData)
	}

	properties, token := "", rest
	if i := strings.LastIndex(rest, Delimiter); i >= 0 {
		properties, token = rest[:i], rest[i+len(Delimiter):]
	}

	if tokens == nil || !tokens.Contains(token) {
		return fail(IncorrectToken)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return fail(NoData)
	}

	return Success{
		ServerHostname:        host,
		SocketAddressHostname: address,
		UniqueID:              id,
		PropertiesJSON:        properties,
	}
}

// Encode builds the forwarded string a proxy would send for s and token.
// Properties are omitted when empty.
func Encode(s Success, token string) string {
	fields := []string{s.ServerHostname, s.SocketAddressHostname, undashed(s.UniqueID)}
	if s.PropertiesJSON != "" {
		fields = append(fields, s.PropertiesJSON)
	}
	fields = append(fields, token)
	return strings.Join(fields, Delimiter)
}

// undashed formats id the way proxies forward it: 32 hex digits.
func undashed(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
