package channel

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// simChannel is the per-channel state of the dry-run driver
type simChannel struct {
	pending   []byte // synthesized response bytes not yet read
	parkedBuf []byte // read buffer parked until response data appears
}

// simDriver is the dry-run driver: no sockets are opened. Every request
// line written through it is answered with a synthesized response
// ({"result": null}) carrying the request's id, queued for the next read.
// Scheduling, correlation and timing behave exactly as with real I/O.
type simDriver struct {
	mu       sync.Mutex
	channels []*simChannel
	queue    []Completion
	notify   chan struct{}
}

// NewSimDriver creates a dry-run driver for the given number of channels
func NewSimDriver(numChannels int) IChannelIODriver {
	channels := make([]*simChannel, numChannels)
	for i := range channels {
		channels[i] = &simChannel{}
	}
	return &simDriver{
		channels: channels,
		notify:   make(chan struct{}, 1),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see channel.IChannelIODriver)
// --------------------------------------------------------------------------

func (d *simDriver) SubmitRead(channelID int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channels[channelID]
	if ch.parkedBuf != nil {
		return fmt.Errorf("channel %d already has a read in flight", channelID)
	}

	if len(ch.pending) == 0 {
		ch.parkedBuf = buf
		return nil
	}

	n := copy(buf, ch.pending)
	ch.pending = ch.pending[n:]
	d.push(Completion{ChannelID: channelID, Op: OpRead, N: n})
	return nil
}

func (d *simDriver) SubmitWrite(channelID int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channels[channelID]

	// Synthesize one response line per complete request line
	rest := buf
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		line := rest[:idx]
		rest = rest[idx+1:]

		req, err := jsonrpc.ParseRequest(line)
		if err != nil {
			return err
		}
		if req.IsNotification() {
			continue
		}

		resp, err := jsonrpc.NewResultResponse(req.ID, nil).Encode()
		if err != nil {
			return err
		}
		ch.pending = append(ch.pending, resp...)
		ch.pending = append(ch.pending, '\n')
	}

	d.push(Completion{ChannelID: channelID, Op: OpWrite, N: len(buf)})

	// Wake a parked read now that response data is available
	if ch.parkedBuf != nil && len(ch.pending) > 0 {
		n := copy(ch.parkedBuf, ch.pending)
		ch.pending = ch.pending[n:]
		ch.parkedBuf = nil
		d.push(Completion{ChannelID: channelID, Op: OpRead, N: n})
	}

	return nil
}

func (d *simDriver) Wait() Completion {
	for {
		d.mu.Lock()
		if len(d.queue) > 0 {
			c := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return c
		}
		d.mu.Unlock()
		<-d.notify
	}
}

func (d *simDriver) Next() (Completion, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return Completion{}, false
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, true
}

func (d *simDriver) Close() error {
	return nil
}

// push appends a completion, caller must hold d.mu
func (d *simDriver) push(c Completion) {
	d.queue = append(d.queue, c)
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
