package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/veloguard/internal/config"
	"github.com/rvald/veloguard/internal/handshake"
	"github.com/rvald/veloguard/internal/token"
)

func TestUnescapeNUL(t *testing.T) {
	assert.Equal(t, "a\x00b\x00c", unescapeNUL(`a\0b\x00c`))
	assert.Equal(t, "plain", unescapeNUL("plain"))
}

func TestPrintResult(t *testing.T) {
	store := token.NewStore([]string{"secret"})

	var out bytes.Buffer
	raw := unescapeNUL(`play.example.com\0127.0.0.1\0069a79f444e94726a5befca90e38aaf5\0secret`)
	require.NoError(t, printResult(&out, handshake.DecodeAndVerify(raw, store)))
	assert.Contains(t, out.String(), "result:      success")
	assert.Contains(t, out.String(), "069a79f4-44e9-4726-a5be-fca90e38aaf5")

	out.Reset()
	raw = unescapeNUL(`play.example.com\0127.0.0.1\0069a79f444e94726a5befca90e38aaf5\0wrong`)
	err := printResult(&out, handshake.DecodeAndVerify(raw, store))
	assert.ErrorContains(t, err, "INCORRECT_TOKEN")
	assert.NotContains(t, out.String(), "wrong")
}

func TestRedact(t *testing.T) {
	cfg := config.Default()
	cfg.Tokens = []string{"a", "b"}
	cfg.Gateway.AuthToken = "shim"

	got := redact(cfg)
	assert.Equal(t, []string{redacted, redacted}, got.Tokens)
	assert.Equal(t, redacted, got.Gateway.AuthToken)
	assert.Equal(t, []string{"a", "b"}, cfg.Tokens, "input is not modified")
}
