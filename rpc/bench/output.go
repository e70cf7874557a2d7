package bench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jrcall/jrcall/rpc/channel"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// WriteResults correlates every received message against its dispatched
// request by id and writes one merged JSON object per call. The merged
// object contains all request members, all response members except
// jsonrpc and id, and the measurement fields.
func (e *Engine) WriteResults(w io.Writer) error {
	out := bufio.NewWriter(w)

	for _, ch := range e.channels {
		if err := e.writeChannelResults(out, ch); err != nil {
			return err
		}
	}

	return out.Flush()
}

// writeChannelResults emits the results of one channel in arrival order
func (e *Engine) writeChannelResults(out *bufio.Writer, ch *channel.Channel) error {
	pending := make(map[jsonrpc.ID]channel.TrackedRequest, len(ch.TrackedRequests()))
	for _, tracked := range ch.TrackedRequests() {
		pending[*tracked.Request.ID] = tracked
	}

	lines := ch.CompletedLines()
	endTimes := ch.EndTimes()

	for i, line := range lines {
		resp, err := jsonrpc.ParseResponse(line)
		if err != nil {
			return err
		}
		if resp.ID == nil {
			return fmt.Errorf("response missing required 'id' field: %s", string(line))
		}

		tracked, ok := pending[*resp.ID]
		if !ok {
			return fmt.Errorf("Response ID does not match any pending request: %s", string(line))
		}
		delete(pending, *resp.ID)

		record, err := e.buildRecord(ch, tracked, line, endTimes[i])
		if err != nil {
			return err
		}

		if _, err := out.Write(record); err != nil {
			return fmt.Errorf("failed to write results: %v", err)
		}
		if err := out.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write results: %v", err)
		}
	}

	if len(pending) > 0 {
		return fmt.Errorf("%d requests on '%s' received no response", len(pending), ch.ServerAddr())
	}
	return nil
}

// buildRecord merges the request and response members of one call with the
// measurement fields
func (e *Engine) buildRecord(ch *channel.Channel, tracked channel.TrackedRequest, respLine []byte, endTime time.Time) ([]byte, error) {
	merged := make(map[string]json.RawMessage)

	if err := json.Unmarshal(tracked.Raw, &merged); err != nil {
		return nil, fmt.Errorf("failed to decode tracked request: %v", err)
	}

	var respMembers map[string]json.RawMessage
	if err := json.Unmarshal(respLine, &respMembers); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	for key, value := range respMembers {
		if key == "jsonrpc" || key == "id" {
			continue
		}
		merged[key] = value
	}

	startMicros := e.baseUnixMicros + tracked.Start.Sub(e.baseTime).Microseconds()
	endMicros := e.baseUnixMicros + endTime.Sub(e.baseTime).Microseconds()

	merged["server"] = mustMarshal(ch.ServerAddr())
	merged["request_byte_size"] = mustMarshal(len(tracked.Raw))
	merged["response_byte_size"] = mustMarshal(len(respLine))
	merged["start_unix_timestamp_micros"] = mustMarshal(startMicros)
	merged["end_unix_timestamp_micros"] = mustMarshal(endMicros)

	return json.Marshal(merged)
}

// mustMarshal marshals a primitive value that cannot fail
func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
