package echo

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// startServer runs an echo server on an ephemeral port and returns a
// connected client
func startServer(t *testing.T) *bufio.ReadWriter {
	t.Helper()

	server := NewServer(common.EchoConfig{Listen: "127.0.0.1:0"})
	if err := server.Listen(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	conn, err := net.Dial("tcp", server.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	return bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
}

func roundTrip(t *testing.T, client *bufio.ReadWriter, line string) []byte {
	t.Helper()

	if _, err := client.WriteString(line + "\n"); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	resp, err := client.ReadBytes('\n')
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp[:len(resp)-1]
}

func TestServer(t *testing.T) {
	t.Run("echoes the request as result", func(t *testing.T) {
		client := startServer(t)

		request := `{"jsonrpc":"2.0","method":"ping","params":{"a":1},"id":7}`
		resp, err := jsonrpc.ParseResponse(roundTrip(t, client, request))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.ID == nil || resp.ID.Num != 7 {
			t.Errorf("unexpected response id: %+v", resp.ID)
		}
		if string(resp.Result) != request {
			t.Errorf("expected the request echoed as result, got %s", string(resp.Result))
		}
	})

	t.Run("notifications get no response", func(t *testing.T) {
		client := startServer(t)

		notification := `{"jsonrpc":"2.0","method":"log"}`
		if _, err := client.WriteString(notification + "\n"); err != nil {
			t.Fatalf("failed to send: %v", err)
		}
		if err := client.Flush(); err != nil {
			t.Fatalf("failed to send: %v", err)
		}

		// The next received line must answer the follow-up request, not
		// the notification
		resp, err := jsonrpc.ParseResponse(roundTrip(t, client, `{"jsonrpc":"2.0","method":"ping","id":1}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.ID == nil || resp.ID.Num != 1 {
			t.Errorf("unexpected response id: %+v", resp.ID)
		}
	})

	t.Run("malformed lines get an error response", func(t *testing.T) {
		client := startServer(t)

		resp, err := jsonrpc.ParseResponse(roundTrip(t, client, `{"jsonrpc":"1.0","method":"x","id":1}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.IsError() || resp.Error.Code != -32600 {
			t.Errorf("expected invalid-request error, got %+v", resp)
		}
		if resp.ID != nil {
			t.Errorf("error response for an unparsable request must have a null id, got %+v", resp.ID)
		}
	})

	t.Run("batch requests are rejected", func(t *testing.T) {
		client := startServer(t)

		resp, err := jsonrpc.ParseResponse(roundTrip(t, client, `[{"jsonrpc":"2.0","method":"x","id":1}]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.IsError() || resp.Error.Code != -32600 {
			t.Errorf("expected invalid-request error, got %+v", resp)
		}
	})

	t.Run("serves many sequential calls", func(t *testing.T) {
		client := startServer(t)

		for i := 1; i <= 50; i++ {
			request := fmt.Sprintf(`{"jsonrpc":"2.0","method":"ping","id":%d}`, i)
			resp, err := jsonrpc.ParseResponse(roundTrip(t, client, request))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.IsError() || resp.ID == nil || resp.ID.Num != int64(i) {
				t.Fatalf("unexpected response: %+v", resp)
			}
		}
	})
}
