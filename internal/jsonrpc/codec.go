package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrMalformedLine marks an inbound line that is neither a response nor a
// notification. Such lines cannot be attributed to any caller.
var ErrMalformedLine = errors.New("malformed line")

// Kind classifies an inbound line.
type Kind int

const (
	KindMalformed Kind = iota
	KindResponse
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "malformed"
	}
}

// Message is the classified form of one inbound line. Exactly one of Response
// or Notification is set, matching Kind.
type Message struct {
	Kind         Kind
	Response     *Response
	Notification *Notification
}

// Encoder serializes requests and owns the identifier counter for one
// connection. The zero value is ready to use; the first identifier is 1.
type Encoder struct {
	next atomic.Uint64
}

// NewEncoder returns an Encoder with a fresh identifier space.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// NextID reserves the next identifier.
func (e *Encoder) NextID() uint64 {
	return e.next.Add(1)
}

// Encode allocates an identifier and returns the newline-terminated request line.
// params may be nil (omitted on the wire), a json.RawMessage, or any value
// accepted by encoding/json.
func (e *Encoder) Encode(method string, params any) (uint64, []byte, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return 0, nil, errors.New("encode request: method is required")
	}
	raw, err := marshalParams(params)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request %s: %w", method, err)
	}
	id := e.NextID()
	req := Request{JSONRPC: Version, Method: method, Params: raw, ID: id}
	line, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request %s: %w", method, err)
	}
	return id, append(line, '\n'), nil
}

func marshalParams(params any) (json.RawMessage, error) {
	switch v := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 {
			return nil, nil
		}
		if !json.Valid(v) {
			return nil, errors.New("params are not valid JSON")
		}
		return compact(v)
	case []byte:
		return marshalParams(json.RawMessage(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

// compact strips insignificant whitespace so raw params never carry a newline
// into the framed line.
func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type probe struct {
	ID     json.RawMessage  `json:"id"`
	Method *string          `json:"method"`
	Params json.RawMessage  `json:"params"`
	Result json.RawMessage  `json:"result"`
	Error  *json.RawMessage `json:"error"`
}

// Classify decodes one inbound line. A line carrying a numeric id is a
// response; a line with a method and no id is a notification. A line with a
// result or error but no usable id is returned as a response with a nil ID so
// the caller can discard it as unroutable. Anything else yields ErrMalformedLine.
func Classify(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Message{}, ErrMalformedLine
	}
	var p probe
	if err := json.Unmarshal(line, &p); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	hasID := len(p.ID) > 0 && !bytes.Equal(p.ID, []byte("null"))
	if hasID {
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		return Message{Kind: KindResponse, Response: &resp}, nil
	}

	if p.Method != nil {
		if strings.TrimSpace(*p.Method) == "" {
			return Message{}, fmt.Errorf("%w: empty method", ErrMalformedLine)
		}
		return Message{Kind: KindNotification, Notification: &Notification{
			Method: *p.Method,
			Params: nullAsEmpty(p.Params),
		}}, nil
	}

	if len(p.Result) > 0 || p.Error != nil {
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		resp.ID = nil
		return Message{Kind: KindResponse, Response: &resp}, nil
	}

	return Message{}, ErrMalformedLine
}

func nullAsEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
