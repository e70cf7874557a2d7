package channel

import (
	"fmt"
	"net"
)

// ioRequest is one submitted operation handed to a connection goroutine
type ioRequest struct {
	buf []byte
}

// netDriver is the completion-based driver for real sockets. Every
// connection is served by one reader and one writer goroutine; each
// executes exactly one submitted operation at a time and posts the result
// onto the shared completion queue.
//
// The completion queue is buffered to two slots per channel (one read, one
// write), so the connection goroutines can never block on it.
type netDriver struct {
	conns       []net.Conn
	readOps     []chan ioRequest
	writeOps    []chan ioRequest
	completions chan Completion
}

// NewNetDriver connects to every server address and starts the per
// connection I/O goroutines. Nagle's algorithm is disabled on every
// connection, matching the latency-sensitive nature of the tool.
func NewNetDriver(serverAddrs []string) (IChannelIODriver, error) {
	d := &netDriver{
		conns:       make([]net.Conn, len(serverAddrs)),
		readOps:     make([]chan ioRequest, len(serverAddrs)),
		writeOps:    make([]chan ioRequest, len(serverAddrs)),
		completions: make(chan Completion, 2*len(serverAddrs)),
	}

	for i, addr := range serverAddrs {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect to '%s': %v", addr, err)
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.SetNoDelay(true); err != nil {
				d.Close()
				return nil, fmt.Errorf("failed to configure connection to '%s': %v", addr, err)
			}
		}

		d.conns[i] = conn
		d.readOps[i] = make(chan ioRequest, 1)
		d.writeOps[i] = make(chan ioRequest, 1)

		go d.readLoop(i)
		go d.writeLoop(i)
	}

	Logger.Infof("Connected %d channels", len(serverAddrs))
	return d, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see channel.IChannelIODriver)
// --------------------------------------------------------------------------

func (d *netDriver) SubmitRead(channelID int, buf []byte) error {
	select {
	case d.readOps[channelID] <- ioRequest{buf: buf}:
		return nil
	default:
		return fmt.Errorf("channel %d already has a read in flight", channelID)
	}
}

func (d *netDriver) SubmitWrite(channelID int, buf []byte) error {
	select {
	case d.writeOps[channelID] <- ioRequest{buf: buf}:
		return nil
	default:
		return fmt.Errorf("channel %d already has a write in flight", channelID)
	}
}

func (d *netDriver) Wait() Completion {
	return <-d.completions
}

func (d *netDriver) Next() (Completion, bool) {
	select {
	case c := <-d.completions:
		return c, true
	default:
		return Completion{}, false
	}
}

func (d *netDriver) Close() error {
	for i, conn := range d.conns {
		if conn == nil {
			continue
		}
		conn.Close()
		close(d.readOps[i])
		close(d.writeOps[i])
	}
	return nil
}

// --------------------------------------------------------------------------
// Connection goroutines
// --------------------------------------------------------------------------

// readLoop executes submitted read operations for one connection
func (d *netDriver) readLoop(channelID int) {
	for op := range d.readOps[channelID] {
		n, err := d.conns[channelID].Read(op.buf)
		d.completions <- Completion{ChannelID: channelID, Op: OpRead, N: n, Err: err}
	}
}

// writeLoop executes submitted write operations for one connection
func (d *netDriver) writeLoop(channelID int) {
	for op := range d.writeOps[channelID] {
		n, err := d.conns[channelID].Write(op.buf)
		d.completions <- Completion{ChannelID: channelID, Op: OpWrite, N: n, Err: err}
	}
}
