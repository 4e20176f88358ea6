package protocol

import (
	"encoding/json"
	"fmt"
)

// MarshalRequest builds a JSON-encoded request frame.
func MarshalRequest(id, method string, params any) ([]byte, error) {
	if id == "" {
		return nil, missingField("request", "id")
	}
	if method == "" {
		return nil, missingField("request", "method")
	}

	raw, err := encodeBody(params, "request params")
	if err != nil {
		return nil, err
	}
	return json.Marshal(RequestFrame{Type: FrameTypeReq, ID: id, Method: method, Params: raw})
}

// MarshalResponse builds a JSON-encoded response frame.
func MarshalResponse(id string, ok bool, payload any, errShape *ErrorShape) ([]byte, error) {
	if id == "" {
		return nil, missingField("response", "id")
	}

	raw, err := encodeBody(payload, "response payload")
	if err != nil {
		return nil, err
	}
	return json.Marshal(ResponseFrame{Type: FrameTypeRes, ID: id, OK: ok, Payload: raw, Error: errShape})
}

// MarshalEvent builds a JSON-encoded event frame.
func MarshalEvent(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, missingField("event", "event")
	}

	raw, err := encodeBody(payload, "event payload")
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventFrame{Type: FrameTypeEvent, Event: event, Payload: raw})
}

// encodeBody marshals v, returning nil for a nil v so the field is omitted.
func encodeBody(v any, what string) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("failed to marshal %s: %v", what, err)}
	}
	return raw, nil
}
