package echo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("echo")

// maxLineSize bounds the length of a single request line
const maxLineSize = 16 * 1024 * 1024

var (
	connectionsTotal   = metrics.NewCounter("echo_connections_total")
	requestsTotal      = metrics.NewCounter("echo_requests_total")
	notificationsTotal = metrics.NewCounter("echo_notifications_total")
	invalidTotal       = metrics.NewCounter("echo_invalid_requests_total")
)

// Server is the echo server: one goroutine per accepted connection,
// newline-delimited requests in, newline-delimited responses out
type Server struct {
	config   common.EchoConfig
	listener net.Listener
}

// NewServer creates an echo server for the given configuration
func NewServer(config common.EchoConfig) *Server {
	return &Server{config: config}
}

// Listen binds the server's listening socket
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on '%s': %v", s.config.Listen, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound listen address (valid after Listen)
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener is closed
func (s *Server) Serve() error {
	if s.config.MetricsAddr != "" {
		go s.serveMetrics()
	}

	Logger.Infof("Echo server listening on %s", s.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %v", err)
		}
		connectionsTotal.Inc()
		go s.handleConn(conn)
	}
}

// ListenAndServe binds the listening socket and serves until closed
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close shuts the listener down; running connections finish on their own
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConn echoes requests on one connection until the peer disconnects
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(line)
		if resp == nil {
			continue
		}

		data, err := resp.Encode()
		if err != nil {
			Logger.Errorf("Failed to encode response: %v", err)
			return
		}
		if _, err := writer.Write(data); err != nil {
			return
		}
		if err := writer.WriteByte('\n'); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// handleLine answers one request line. Notifications yield nil; anything
// invalid yields an error response with a null id.
func (s *Server) handleLine(line []byte) *jsonrpc.Response {
	requestsTotal.Inc()

	if line[0] == '[' {
		invalidTotal.Inc()
		return jsonrpc.NewErrorResponse(nil, -32600, "batch requests are not supported")
	}

	req, err := jsonrpc.ParseRequest(line)
	if err != nil {
		invalidTotal.Inc()
		return jsonrpc.NewErrorResponse(nil, -32600, err.Error())
	}

	if req.IsNotification() {
		notificationsTotal.Inc()
		return nil
	}

	// The result value is the received request object itself
	return jsonrpc.NewResultResponse(req.ID, line)
}

// serveMetrics exposes the counters on a Prometheus-compatible endpoint
func (s *Server) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	Logger.Infof("Metrics endpoint on http://%s/metrics", s.config.MetricsAddr)
	if err := http.ListenAndServe(s.config.MetricsAddr, mux); err != nil {
		Logger.Errorf("Metrics endpoint failed: %v", err)
	}
}
