package gateway

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/veloguard/internal/protocol"
)

func TestRecorder_CountsListenerOutcomes(t *testing.T) {
	success := testutil.ToFloat64(HandshakesTotal.WithLabelValues("success"))
	incorrect := testutil.ToFloat64(HandshakesTotal.WithLabelValues("incorrect_token"))
	logged := testutil.ToFloat64(DenialsLogged)

	gw, _ := newTestGateway(t, testToken)
	conn, ws := authedConn(t, gw)
	verify(t, gw, conn, ws, protocol.VerifyParams{ConnID: "p1", Handshake: validHandshake})
	verify(t, gw, conn, ws, protocol.VerifyParams{ConnID: "p2", Handshake: "host\x00addr\x00" + testUUID + "\x00bad"})

	assert.Equal(t, success+1, testutil.ToFloat64(HandshakesTotal.WithLabelValues("success")))
	assert.Equal(t, incorrect+1, testutil.ToFloat64(HandshakesTotal.WithLabelValues("incorrect_token")))
	assert.Equal(t, logged+1, testutil.ToFloat64(DenialsLogged))
}

func TestRecorder_Suppressed(t *testing.T) {
	before := testutil.ToFloat64(DenialsSuppressed)
	Recorder{}.DenialSuppressed()
	assert.Equal(t, before+1, testutil.ToFloat64(DenialsSuppressed))
}

func TestIncError(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("protocol"))
	IncError("protocol")
	require.Equal(t, before+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("protocol")))
}
