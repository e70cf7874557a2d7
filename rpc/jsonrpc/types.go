package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the only protocol version accepted on the wire
const Version = "2.0"

// --------------------------------------------------------------------------
// Request ID (number or string)
// --------------------------------------------------------------------------

// ID is a JSON-RPC request identifier: either an integer or a string.
// The zero value is not a valid wire ID; IDs always travel as *ID with
// nil meaning "absent" (i.e. a notification).
//
// ID is comparable and can be used directly as a map key for correlation.
type ID struct {
	Num   int64
	Str   string
	IsStr bool
}

// NumberID creates a numeric request ID
func NumberID(n int64) *ID {
	return &ID{Num: n}
}

// StringID creates a string request ID
func StringID(s string) *ID {
	return &ID{Str: s, IsStr: true}
}

// String returns the ID in its wire representation
func (id ID) String() string {
	if id.IsStr {
		return strconv.Quote(id.Str)
	}
	return strconv.FormatInt(id.Num, 10)
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsStr {
		return json.Marshal(id.Str)
	}
	return json.Marshal(id.Num)
}

// UnmarshalJSON implements json.Unmarshaler. Only integers and strings are
// accepted; any other JSON value is rejected.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty request id")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{Str: s, IsStr: true}
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("request id must be an integer or string: %s", string(b))
	}
	*id = ID{Num: n}
	return nil
}

// ParseID parses an ID from its textual form (used for the --id flag)
func ParseID(s string) (*ID, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumberID(n), nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return nil, fmt.Errorf("invalid request id %q: %v", s, err)
		}
		return StringID(str), nil
	}
	return StringID(s), nil
}

// --------------------------------------------------------------------------
// Request object
// --------------------------------------------------------------------------

// Request is a single JSON-RPC 2.0 request object
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// NewRequest creates a request object. A nil id makes it a notification.
func NewRequest(method string, params json.RawMessage, id *ID) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// IsNotification returns true if no response is expected for this request
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Validate checks the constraints the wire format places on a request
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("jsonrpc version must be %q", Version)
	}
	if r.Method == "" {
		return fmt.Errorf("method field is required")
	}
	if len(r.Params) > 0 && r.Params[0] != '{' && r.Params[0] != '[' {
		return fmt.Errorf("params must be an object or array")
	}
	return nil
}

// ParseRequest parses and validates a single request object
func ParseRequest(text []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(text, &req); err != nil {
		return nil, fmt.Errorf("malformed request %q: %v", string(text), err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request %q: %v", string(text), err)
	}
	return &req, nil
}

// --------------------------------------------------------------------------
// Response object
// --------------------------------------------------------------------------

// ErrorObject is the error member of a failed response
type ErrorObject struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is a single JSON-RPC 2.0 response object.
// Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// IsError returns true if the response carries an error member
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Validate checks the constraints the wire format places on a response
func (r *Response) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("jsonrpc version must be %q", Version)
	}
	if r.Result == nil && r.Error == nil {
		return fmt.Errorf("response must contain a result or error member")
	}
	if r.Result != nil && r.Error != nil {
		return fmt.Errorf("response must not contain both result and error members")
	}
	return nil
}

// ParseResponse parses and validates a single response object
func ParseResponse(text []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(text, &resp); err != nil {
		return nil, fmt.Errorf("malformed response %q: %v", string(text), err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid response %q: %v", string(text), err)
	}
	return &resp, nil
}

// Encode returns the serialized wire text of the response (no trailing newline)
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// NewResultResponse creates a successful response for the given id
func NewResultResponse(id *ID, result json.RawMessage) *Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{
		JSONRPC: Version,
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates a failed response for the given id
func NewErrorResponse(id *ID, code int64, message string) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &ErrorObject{Code: code, Message: message},
		ID:      id,
	}
}
