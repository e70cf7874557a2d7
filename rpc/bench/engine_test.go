package bench

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jrcall/jrcall/rpc/channel"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// fakeDriver answers every written request line via the respond function.
// It keeps the one-read/one-write-per-channel discipline of the real
// drivers but completes everything synchronously.
type fakeDriver struct {
	respond func(req *jsonrpc.Request) []byte
	pending [][]byte
	parked  [][]byte
	queue   []channel.Completion
}

func newFakeDriver(numChannels int, respond func(req *jsonrpc.Request) []byte) *fakeDriver {
	return &fakeDriver{
		respond: respond,
		pending: make([][]byte, numChannels),
		parked:  make([][]byte, numChannels),
	}
}

func (d *fakeDriver) SubmitRead(channelID int, buf []byte) error {
	if len(d.pending[channelID]) == 0 {
		d.parked[channelID] = buf
		return nil
	}
	n := copy(buf, d.pending[channelID])
	d.pending[channelID] = d.pending[channelID][n:]
	d.queue = append(d.queue, channel.Completion{ChannelID: channelID, Op: channel.OpRead, N: n})
	return nil
}

func (d *fakeDriver) SubmitWrite(channelID int, buf []byte) error {
	rest := buf
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		req, err := jsonrpc.ParseRequest(rest[:idx])
		if err != nil {
			return err
		}
		rest = rest[idx+1:]

		d.pending[channelID] = append(d.pending[channelID], d.respond(req)...)
		d.pending[channelID] = append(d.pending[channelID], '\n')
	}
	d.queue = append(d.queue, channel.Completion{ChannelID: channelID, Op: channel.OpWrite, N: len(buf)})

	if d.parked[channelID] != nil && len(d.pending[channelID]) > 0 {
		parked := d.parked[channelID]
		d.parked[channelID] = nil
		n := copy(parked, d.pending[channelID])
		d.pending[channelID] = d.pending[channelID][n:]
		d.queue = append(d.queue, channel.Completion{ChannelID: channelID, Op: channel.OpRead, N: n})
	}
	return nil
}

func (d *fakeDriver) Wait() channel.Completion {
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c
}

func (d *fakeDriver) Next() (channel.Completion, bool) {
	if len(d.queue) == 0 {
		return channel.Completion{}, false
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, true
}

func (d *fakeDriver) Close() error { return nil }

func echoResponse(req *jsonrpc.Request) []byte {
	resp, _ := jsonrpc.NewResultResponse(req.ID, req.Params).Encode()
	return resp
}

func TestReadRequests(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		e := NewEngine(common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}, nil)
		input := `{"jsonrpc":"2.0","method":"ping","id":1}
{"jsonrpc":"2.0","method":"ping","id":"two"}
`
		if err := e.ReadRequests(strings.NewReader(input)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(e.requests) != 2 {
			t.Errorf("expected 2 requests, got %d", len(e.requests))
		}
	})

	t.Run("rejects notification", func(t *testing.T) {
		e := NewEngine(common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}, nil)
		err := e.ReadRequests(strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}` + "\n"))
		if err == nil || !strings.Contains(err.Error(), "notification") {
			t.Errorf("expected notification error, got %v", err)
		}
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		e := NewEngine(common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}, nil)
		input := `{"jsonrpc":"2.0","method":"ping","id":1}
{"jsonrpc":"2.0","method":"pong","id":1}
`
		err := e.ReadRequests(strings.NewReader(input))
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("expected duplicate id error, got %v", err)
		}
	})

	t.Run("rejects batch", func(t *testing.T) {
		e := NewEngine(common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}, nil)
		err := e.ReadRequests(strings.NewReader(`[{"jsonrpc":"2.0","method":"ping","id":1}]` + "\n"))
		if err == nil || !strings.Contains(err.Error(), "batch") {
			t.Errorf("expected batch error, got %v", err)
		}
	})
}

func TestEngineRun(t *testing.T) {
	t.Run("all requests answered", func(t *testing.T) {
		config := common.BenchConfig{Servers: []string{"a:1", "b:2"}, Concurrency: 4}
		driver := newFakeDriver(2, echoResponse)
		e := NewEngine(config, driver)

		var input strings.Builder
		for i := 1; i <= 4; i++ {
			req, _ := json.Marshal(jsonrpc.NewRequest("ping", json.RawMessage(`{"n":1}`), jsonrpc.NumberID(int64(i))))
			input.Write(req)
			input.WriteByte('\n')
		}
		if err := e.ReadRequests(strings.NewReader(input.String())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out bytes.Buffer
		if err := e.WriteResults(&out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte{'\n'})
		if len(lines) != 4 {
			t.Fatalf("expected 4 result lines, got %d", len(lines))
		}

		for _, line := range lines {
			var record map[string]json.RawMessage
			if err := json.Unmarshal(line, &record); err != nil {
				t.Fatalf("malformed result line %q: %v", string(line), err)
			}
			for _, key := range []string{"method", "result", "server",
				"request_byte_size", "response_byte_size",
				"start_unix_timestamp_micros", "end_unix_timestamp_micros"} {
				if _, ok := record[key]; !ok {
					t.Errorf("result line missing %q member: %s", key, string(line))
				}
			}
			var start, end int64
			_ = json.Unmarshal(record["start_unix_timestamp_micros"], &start)
			_ = json.Unmarshal(record["end_unix_timestamp_micros"], &end)
			if end < start {
				t.Errorf("end timestamp %d before start timestamp %d", end, start)
			}
		}
	})

	t.Run("balances across channels", func(t *testing.T) {
		config := common.BenchConfig{Servers: []string{"a:1", "b:2"}, Concurrency: 4}
		driver := newFakeDriver(2, echoResponse)
		e := NewEngine(config, driver)

		var input strings.Builder
		for i := 1; i <= 4; i++ {
			req, _ := json.Marshal(jsonrpc.NewRequest("ping", nil, jsonrpc.NumberID(int64(i))))
			input.Write(req)
			input.WriteByte('\n')
		}
		if err := e.ReadRequests(strings.NewReader(input.String())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for i, ch := range e.Channels() {
			if got := len(ch.TrackedRequests()); got != 2 {
				t.Errorf("channel %d dispatched %d requests, expected 2", i, got)
			}
		}
	})

	t.Run("unmatched response id fails", func(t *testing.T) {
		config := common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}
		driver := newFakeDriver(1, func(req *jsonrpc.Request) []byte {
			resp, _ := jsonrpc.NewResultResponse(jsonrpc.NumberID(999), nil).Encode()
			return resp
		})
		e := NewEngine(config, driver)

		if err := e.ReadRequests(strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}` + "\n")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out bytes.Buffer
		err := e.WriteResults(&out)
		if err == nil || !strings.Contains(err.Error(), "does not match any pending request") {
			t.Errorf("expected correlation error, got %v", err)
		}
	})

	t.Run("response without id fails", func(t *testing.T) {
		config := common.BenchConfig{Servers: []string{"a:1"}, Concurrency: 1}
		driver := newFakeDriver(1, func(req *jsonrpc.Request) []byte {
			resp, _ := jsonrpc.NewResultResponse(nil, nil).Encode()
			return resp
		})
		e := NewEngine(config, driver)

		if err := e.ReadRequests(strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}` + "\n")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out bytes.Buffer
		err := e.WriteResults(&out)
		if err == nil || !strings.Contains(err.Error(), "missing required 'id'") {
			t.Errorf("expected missing id error, got %v", err)
		}
	})

	t.Run("dry-run driver answers everything", func(t *testing.T) {
		config := common.BenchConfig{Servers: []string{"a:1", "b:2", "c:3"}, Concurrency: 8, DryRun: true}
		driver := channel.NewSimDriver(3)
		e := NewEngine(config, driver)

		var input strings.Builder
		for i := 1; i <= 20; i++ {
			req, _ := json.Marshal(jsonrpc.NewRequest("ping", nil, jsonrpc.NumberID(int64(i))))
			input.Write(req)
			input.WriteByte('\n')
		}
		if err := e.ReadRequests(strings.NewReader(input.String())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out bytes.Buffer
		if err := e.WriteResults(&out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte{'\n'})
		if len(lines) != 20 {
			t.Errorf("expected 20 result lines, got %d", len(lines))
		}
	})
}
