package handshake

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reason classifies a failed handshake. The set is closed.
type Reason string

const (
	// NoData means the forwarded data is missing or malformed.
	NoData Reason = "NO_DATA"
	// IncorrectToken means the data is well-formed but the token is not accepted.
	IncorrectToken Reason = "INCORRECT_TOKEN"
)

// Result is either Success or Fail.
type Result interface {
	isResult()
}

// Success carries identity fields that passed verification and may be
// forwarded into the host's connection state.
type Success struct {
	ServerHostname        string
	SocketAddressHostname string
	UniqueID              uuid.UUID
	PropertiesJSON        string
}

// Fail describes a rejected handshake. RawData is kept for diagnostics
// only and must never be trusted.
type Fail struct {
	Reason  Reason
	RawData string
}

func (Success) isResult() {}
func (Fail) isResult()    {}

// DescribeConnection renders the untrusted fields of the raw handshake for
// a log line. The token is never printed, only its length.
func (f Fail) DescribeConnection() string {
	if f.RawData == "" {
		return "empty handshake"
	}

	fields := strings.Split(f.RawData, Delimiter)
	var b strings.Builder
	fmt.Fprintf(&b, "fields=%d", len(fields))
	if len(fields) > 0 {
		fmt.Fprintf(&b, " host=%q", truncate(fields[0]))
	}
	if len(fields) > 1 {
		fmt.Fprintf(&b, " address=%q", truncate(fields[1]))
	}
	if len(fields) > 2 {
		fmt.Fprintf(&b, " uuid=%q", truncate(fields[2]))
	}
	if len(fields) >= MinFields {
		fmt.Fprintf(&b, " tokenLength=%d", len(fields[len(fields)-1]))
	}
	return b.String()
}

const describeMaxField = 64

func truncate(s string) string {
	if len(s) <= describeMaxField {
		return s
	}
	return s[:describeMaxField] + "..."
}
