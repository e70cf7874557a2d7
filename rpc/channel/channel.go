package channel

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

const (
	// readBufferSize is the size of the fixed buffer handed to read operations
	readBufferSize = 4096
)

// TrackedRequest is a dispatched request together with its wire text and
// the monotonic timestamp captured at dispatch time
type TrackedRequest struct {
	Request *jsonrpc.Request
	Raw     []byte
	Start   time.Time
}

// Channel represents one connection to a server: its send buffer with write
// offset, its receive accumulator, and the count of in-flight requests.
//
// A Channel is owned by a single event loop; none of its methods are safe
// for concurrent use.
type Channel struct {
	id         int
	serverAddr string

	sendBuf       []byte
	sendBufOffset int
	pendingSends  [][]byte

	recvBuf []byte
	readBuf []byte

	writeInflight bool
	readInflight  bool

	ongoing  int
	requests []TrackedRequest
	endTimes []time.Time
}

// NewChannel creates a channel for the given server address
func NewChannel(id int, serverAddr string) *Channel {
	return &Channel{
		id:         id,
		serverAddr: serverAddr,
		readBuf:    make([]byte, readBufferSize),
	}
}

// ID returns the channel index
func (c *Channel) ID() int {
	return c.id
}

// ServerAddr returns the peer address of the channel
func (c *Channel) ServerAddr() string {
	return c.serverAddr
}

// Ongoing returns the number of dispatched but unanswered requests
func (c *Channel) Ongoing() int {
	return c.ongoing
}

// TrackedRequests returns all requests dispatched through this channel
func (c *Channel) TrackedRequests() []TrackedRequest {
	return c.requests
}

// EndTimes returns the completion timestamp of every received message,
// in arrival order
func (c *Channel) EndTimes() []time.Time {
	return c.endTimes
}

// CompletedLines returns the complete newline-delimited messages received
// so far, in arrival order
func (c *Channel) CompletedLines() [][]byte {
	var lines [][]byte
	buf := c.recvBuf
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, buf[:idx])
		buf = buf[idx+1:]
	}
	return lines
}

// --------------------------------------------------------------------------
// Send path
// --------------------------------------------------------------------------

// EnqueueRequest appends the request's wire text to the send queue and
// submits a write if none is in flight. The request is tracked for later
// correlation with its start timestamp.
func (c *Channel) EnqueueRequest(drv IChannelIODriver, now time.Time, req *jsonrpc.Request, raw []byte) error {
	line := make([]byte, 0, len(raw)+1)
	line = append(line, raw...)
	line = append(line, '\n')

	c.requests = append(c.requests, TrackedRequest{Request: req, Raw: raw, Start: now})
	c.ongoing++

	if c.writeInflight {
		c.pendingSends = append(c.pendingSends, line)
		return nil
	}

	c.sendBuf = append(c.sendBuf, line...)
	return c.maybeSubmitWrite(drv)
}

// maybeSubmitWrite submits a write for the unsent part of the send buffer,
// refilling it from the pending queue first if it has been fully drained
func (c *Channel) maybeSubmitWrite(drv IChannelIODriver) error {
	if c.writeInflight {
		return nil
	}

	if c.sendBufOffset >= len(c.sendBuf) {
		c.sendBuf = c.sendBuf[:0]
		c.sendBufOffset = 0
		c.fillSendBufFromQueue()
	}

	if c.sendBufOffset >= len(c.sendBuf) {
		return nil
	}

	if err := drv.SubmitWrite(c.id, c.sendBuf[c.sendBufOffset:]); err != nil {
		return err
	}
	c.writeInflight = true
	return nil
}

// HandleWriteCompletion advances the send offset and submits the next write
// if unsent bytes remain. A zero-byte write means the peer closed the
// connection, which is fatal to the channel.
func (c *Channel) HandleWriteCompletion(drv IChannelIODriver, n int, err error) error {
	c.writeInflight = false

	if err != nil {
		return fmt.Errorf("failed to send request to '%s': %v", c.serverAddr, err)
	}
	if n == 0 {
		return fmt.Errorf("connection to '%s' closed by server", c.serverAddr)
	}

	c.sendBufOffset += n
	if c.sendBufOffset >= len(c.sendBuf) {
		c.sendBuf = c.sendBuf[:0]
		c.sendBufOffset = 0
		c.fillSendBufFromQueue()
	}

	return c.maybeSubmitWrite(drv)
}

// fillSendBufFromQueue swaps the queued pending bytes into the (drained)
// active send buffer
func (c *Channel) fillSendBufFromQueue() {
	if len(c.sendBuf) > 0 {
		return
	}

	for _, next := range c.pendingSends {
		c.sendBuf = append(c.sendBuf, next...)
	}
	c.pendingSends = c.pendingSends[:0]
}

// --------------------------------------------------------------------------
// Receive path
// --------------------------------------------------------------------------

// SubmitRead submits the channel's single outstanding read operation.
// It is a no-op while a read is already in flight.
func (c *Channel) SubmitRead(drv IChannelIODriver) error {
	if c.readInflight {
		return nil
	}

	if err := drv.SubmitRead(c.id, c.readBuf); err != nil {
		return err
	}
	c.readInflight = true
	return nil
}

// HandleReadCompletion appends the read bytes to the receive accumulator,
// counts how many complete messages arrived, stamps their end times and
// re-submits the read. Zero bytes read means the peer closed the
// connection, which is fatal to the channel.
func (c *Channel) HandleReadCompletion(drv IChannelIODriver, n int, err error) error {
	c.readInflight = false

	if err != nil {
		return fmt.Errorf("failed to read response from '%s': %v", c.serverAddr, err)
	}
	if n == 0 {
		return fmt.Errorf("connection to '%s' closed by server", c.serverAddr)
	}

	count := bytes.Count(c.readBuf[:n], []byte{'\n'})
	if count > 0 {
		now := time.Now()
		for i := 0; i < count; i++ {
			c.endTimes = append(c.endTimes, now)
		}
		if count > c.ongoing {
			return fmt.Errorf("too many responses from '%s': %d messages for %d in-flight requests",
				c.serverAddr, count, c.ongoing)
		}
		c.ongoing -= count
	}

	c.recvBuf = append(c.recvBuf, c.readBuf[:n]...)
	return c.SubmitRead(drv)
}
