package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FrameError carries structured context for observability.
type FrameError struct {
	Code    string // e.g. "INVALID_JSON", "MISSING_FIELD", "UNKNOWN_TYPE"
	Field   string // which field was the problem, if applicable
	Message string // human-readable detail
}

func (e *FrameError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("frame error [%s]: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("frame error [%s]: %s", e.Code, e.Message)
}

func missingField(kind, field string) *FrameError {
	return &FrameError{
		Code:    "MISSING_FIELD",
		Field:   field,
		Message: fmt.Sprintf("%s frame missing required %q field", kind, field),
	}
}

// FrameType discriminates the three frame shapes.
type FrameType string

const (
	FrameTypeReq   FrameType = "req"
	FrameTypeRes   FrameType = "res"
	FrameTypeEvent FrameType = "event"
)

type RawFrame struct {
	Type FrameType `json:"type"`
}

type RequestFrame struct {
	Type   FrameType       `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ResponseFrame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

type EventFrame struct {
	Type    FrameType       `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     *int            `json:"seq,omitempty"`
}

type ErrorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable *bool  `json:"retryable,omitempty"`
}

// ParseFrame decodes data into *RequestFrame, *ResponseFrame or *EventFrame.
func ParseFrame(data []byte) (any, error) {
	var raw RawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid frame JSON: %v", err)}
	}

	switch raw.Type {
	case "":
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "type", Message: "frame missing required \"type\" field"}

	case FrameTypeReq:
		var req RequestFrame
		if err := decode(data, &req, "request"); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, missingField("request", "id")
		}
		if req.Method == "" {
			return nil, missingField("request", "method")
		}
		if bytes.Equal(req.Params, []byte("null")) {
			req.Params = nil
		}
		return &req, nil

	case FrameTypeRes:
		var res ResponseFrame
		if err := decode(data, &res, "response"); err != nil {
			return nil, err
		}
		if res.ID == "" {
			return nil, missingField("response", "id")
		}
		return &res, nil

	case FrameTypeEvent:
		var evt EventFrame
		if err := decode(data, &evt, "event"); err != nil {
			return nil, err
		}
		if evt.Event == "" {
			return nil, missingField("event", "event")
		}
		return &evt, nil

	default:
		return nil, &FrameError{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown frame type: %q", raw.Type)}
	}
}

func decode(data []byte, v any, kind string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid %s frame JSON: %v", kind, err)}
	}
	return nil
}

// DecodeParams unmarshals a request's params into v. Absent params leave v
// untouched.
func DecodeParams(req *RequestFrame, v any) error {
	if req.Params == nil {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return &FrameError{Code: "INVALID_JSON", Field: "params", Message: fmt.Sprintf("invalid %s params: %v", req.Method, err)}
	}
	return nil
}
