package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame_Valid(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"req","id":"r1","method":"handshake.verify","params":{"connId":"c1"}}`))
		require.NoError(t, err)
		req, ok := frame.(*RequestFrame)
		require.True(t, ok, "expected *RequestFrame")
		assert.Equal(t, "r1", req.ID)
		assert.Equal(t, MethodHandshakeVerify, req.Method)
		assert.NotNil(t, req.Params)
	})

	t.Run("response", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"res","id":"r1","ok":false,"error":{"code":"UNAUTHORIZED","message":"token_mismatch"}}`))
		require.NoError(t, err)
		res, ok := frame.(*ResponseFrame)
		require.True(t, ok, "expected *ResponseFrame")
		assert.False(t, res.OK)
		assert.Nil(t, res.Payload)
		require.NotNil(t, res.Error)
		assert.Equal(t, "UNAUTHORIZED", res.Error.Code)
	})

	t.Run("event with seq", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"event","event":"tokens.reloaded","payload":{"count":2},"seq":7}`))
		require.NoError(t, err)
		evt, ok := frame.(*EventFrame)
		require.True(t, ok, "expected *EventFrame")
		assert.Equal(t, EventTokensReloaded, evt.Event)
		require.NotNil(t, evt.Seq)
		assert.Equal(t, 7, *evt.Seq)
	})

	t.Run("null params become nil", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"req","id":"r1","method":"conn.close","params":null}`))
		require.NoError(t, err)
		assert.Nil(t, frame.(*RequestFrame).Params)
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"req","id":"r1","method":"connect","params":{},"future":42}`))
		require.NoError(t, err)
		assert.Equal(t, MethodConnect, frame.(*RequestFrame).Method)
	})
}

func TestParseFrame_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "bad json", input: `{broken`, want: []string{"INVALID_JSON"}},
		{name: "empty", input: ``, want: []string{"INVALID_JSON"}},
		{name: "unknown type", input: `{"type":"wat","id":"x"}`, want: []string{"UNKNOWN_TYPE", "unknown frame type"}},
		{name: "missing type", input: `{"id":"x","method":"connect"}`, want: []string{"MISSING_FIELD", "field=type"}},
		{name: "request missing id", input: `{"type":"req","method":"connect"}`, want: []string{"MISSING_FIELD", "field=id"}},
		{name: "request missing method", input: `{"type":"req","id":"x"}`, want: []string{"MISSING_FIELD", "field=method"}},
		{name: "response missing id", input: `{"type":"res","ok":true}`, want: []string{"MISSING_FIELD", "field=id"}},
		{name: "event missing name", input: `{"type":"event","payload":{}}`, want: []string{"MISSING_FIELD", "field=event"}},
		{name: "request with wrong id type", input: `{"type":"req","id":5,"method":"connect"}`, want: []string{"INVALID_JSON"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, frame)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestDecodeParams(t *testing.T) {
	var p VerifyParams
	err := DecodeParams(&RequestFrame{Method: MethodHandshakeVerify, Params: []byte(`{"connId":"c1","handshake":"x"}`)}, &p)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ConnID)

	p = VerifyParams{ConnID: "keep"}
	require.NoError(t, DecodeParams(&RequestFrame{Method: MethodHandshakeVerify}, &p))
	assert.Equal(t, "keep", p.ConnID)

	err = DecodeParams(&RequestFrame{Method: MethodHandshakeVerify, Params: []byte(`{"connId":5}`)}, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field=params")
}
