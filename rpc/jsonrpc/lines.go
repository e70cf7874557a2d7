package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Input lines (single request or batch)
// --------------------------------------------------------------------------

// Input is one line of the request stream: a single request object or a
// batch (JSON array of request objects). The serialized wire text is
// retained so that byte accounting reflects what is actually sent.
type Input struct {
	Requests []*Request
	Batch    bool

	raw []byte // serialized text without trailing newline
}

// ParseInput parses one input line into a single request or a batch.
// The line is copied, callers may reuse their buffer.
func ParseInput(line []byte) (*Input, error) {
	trimmed := bytes.Clone(bytes.TrimSpace(line))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input line")
	}

	if trimmed[0] == '[' {
		var reqs []*Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, fmt.Errorf("malformed batch request %q: %v", string(trimmed), err)
		}
		if len(reqs) == 0 {
			return nil, fmt.Errorf("empty batch request")
		}
		for _, req := range reqs {
			if req == nil {
				return nil, fmt.Errorf("malformed batch request %s: null is not a request object", string(trimmed))
			}
			if err := req.Validate(); err != nil {
				return nil, fmt.Errorf("invalid request in batch %q: %v", string(trimmed), err)
			}
		}
		return &Input{Requests: reqs, Batch: true, raw: trimmed}, nil
	}

	req, err := ParseRequest(trimmed)
	if err != nil {
		return nil, err
	}
	return &Input{Requests: []*Request{req}, raw: trimmed}, nil
}

// IsNotification returns true if every request in the input lacks an ID
func (in *Input) IsNotification() bool {
	for _, req := range in.Requests {
		if req.ID != nil {
			return false
		}
	}
	return true
}

// FirstID returns the first non-nil request ID, or nil
func (in *Input) FirstID() *ID {
	for _, req := range in.Requests {
		if req.ID != nil {
			return req.ID
		}
	}
	return nil
}

// ReassignIDs rewrites every non-notification request ID to a fresh
// monotonically increasing integer taken from next. It returns the first
// reassigned ID (the correlation key for metadata collection), or nil if
// the input is a notification.
//
// The caller owns next: issuance must stay single-threaded or atomic so
// that IDs remain unique across all in-flight requests.
func (in *Input) ReassignIDs(next *int64) *ID {
	if in.IsNotification() {
		return nil
	}

	var metadataID *ID
	for _, req := range in.Requests {
		if req.ID == nil {
			continue
		}
		req.ID = NumberID(*next)
		*next++
		if metadataID == nil {
			metadataID = req.ID
		}
	}

	// The wire text changed, force re-encoding
	in.raw = nil
	return metadataID
}

// Encode returns the serialized wire text of the input (no trailing newline)
func (in *Input) Encode() ([]byte, error) {
	if in.raw != nil {
		return in.raw, nil
	}

	var (
		data []byte
		err  error
	)
	if in.Batch {
		data, err = json.Marshal(in.Requests)
	} else {
		data, err = json.Marshal(in.Requests[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %v", err)
	}
	in.raw = data
	return data, nil
}

// --------------------------------------------------------------------------
// Output records (response plus optional metadata)
// --------------------------------------------------------------------------

// Metadata carries the timing information captured for one call.
// Timestamps are unix epoch microseconds.
type Metadata struct {
	Request     json.RawMessage `json:"request"`
	Server      string          `json:"server"`
	StartTimeUS int64           `json:"start_time_us"`
	EndTimeUS   int64           `json:"end_time_us"`
}

// ResponseRecord is a response object optionally paired with metadata.
// On the wire the metadata travels as an injected "metadata" member.
type ResponseRecord struct {
	Response
	Metadata *Metadata `json:"metadata,omitempty"`
}

// ResponseSize returns the serialized length of the response excluding the
// injected metadata member, so reported transport sizes stay meaningful.
func (r *ResponseRecord) ResponseSize() (int, error) {
	data, err := json.Marshal(&r.Response)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Output is one line of the result stream: a single response record or a
// batch. Ordering across outputs is completion order, not submission order.
type Output struct {
	Records []*ResponseRecord
	Batch   bool
}

// ParseOutput parses one output line into a single record or a batch
func ParseOutput(line []byte) (*Output, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty output line")
	}

	if trimmed[0] == '[' {
		var records []*ResponseRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("malformed batch response %q: %v", string(trimmed), err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("empty batch response")
		}
		for _, record := range records {
			if record == nil {
				return nil, fmt.Errorf("malformed batch response %s: null is not a response object", string(trimmed))
			}
		}
		return &Output{Records: records, Batch: true}, nil
	}

	var record ResponseRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, fmt.Errorf("malformed response %q: %v", string(trimmed), err)
	}
	return &Output{Records: []*ResponseRecord{&record}}, nil
}

// Encode returns the serialized wire text of the output (no trailing newline)
func (o *Output) Encode() ([]byte, error) {
	if o.Batch {
		return json.Marshal(o.Records)
	}
	return json.Marshal(o.Records[0])
}

// Metadata returns the metadata attached to the output, or nil.
// For batch outputs the metadata lives on the first record.
func (o *Output) Metadata() *Metadata {
	for _, record := range o.Records {
		if record.Metadata != nil {
			return record.Metadata
		}
	}
	return nil
}

// FirstID returns the first non-nil response ID, or nil
func (o *Output) FirstID() *ID {
	for _, record := range o.Records {
		if record.ID != nil {
			return record.ID
		}
	}
	return nil
}
