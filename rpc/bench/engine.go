package bench

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/jrcall/jrcall/rpc/channel"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("bench")

// maxLineSize bounds the length of a single input line
const maxLineSize = 16 * 1024 * 1024

// benchRequest is one parsed input request awaiting dispatch
type benchRequest struct {
	req *jsonrpc.Request
	raw []byte
}

// Engine is the event-loop benchmark engine. It is single-threaded: all
// dispatch decisions and completion handling happen on the calling
// goroutine, which suspends only while waiting for completions.
type Engine struct {
	config   common.BenchConfig
	driver   channel.IChannelIODriver
	channels []*channel.Channel

	requests  []benchRequest
	nextIndex int
	ongoing   int

	baseTime       time.Time
	baseUnixMicros int64
}

// NewEngine creates a benchmark engine running on the given driver.
// One channel is created per configured server address.
func NewEngine(config common.BenchConfig, driver channel.IChannelIODriver) *Engine {
	channels := make([]*channel.Channel, len(config.Servers))
	for i, addr := range config.Servers {
		channels[i] = channel.NewChannel(i, addr)
	}
	return &Engine{
		config:   config,
		driver:   driver,
		channels: channels,
	}
}

// Channels exposes the engine's channels (used by the finalize pass and tests)
func (e *Engine) Channels() []*channel.Channel {
	return e.channels
}

// --------------------------------------------------------------------------
// Input handling
// --------------------------------------------------------------------------

// ReadRequests reads all newline-delimited requests before the run starts.
// Notifications, batch lines and duplicate IDs are fatal input errors.
func (e *Engine) ReadRequests(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	ids := make(map[jsonrpc.ID]struct{})

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		input, err := jsonrpc.ParseInput(line)
		if err != nil {
			return err
		}
		if input.Batch {
			return fmt.Errorf("bench does not support batch requests: %s", string(line))
		}

		req := input.Requests[0]
		if req.IsNotification() {
			return fmt.Errorf("bench does not support notifications: %s", string(line))
		}
		if _, ok := ids[*req.ID]; ok {
			return fmt.Errorf("input contains duplicate request id: %s", string(line))
		}
		ids[*req.ID] = struct{}{}

		raw, err := input.Encode()
		if err != nil {
			return err
		}
		e.requests = append(e.requests, benchRequest{req: req, raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %v", err)
	}

	Logger.Infof("Read %d requests for %d channels", len(e.requests), len(e.channels))
	return nil
}

// --------------------------------------------------------------------------
// Event loop
// --------------------------------------------------------------------------

// Run executes all read requests and blocks until every response arrived
func (e *Engine) Run() error {
	e.baseTime = time.Now()
	e.baseUnixMicros = time.Now().UnixMicro()

	// Each channel keeps exactly one read operation outstanding at all times
	for _, ch := range e.channels {
		if err := ch.SubmitRead(e.driver); err != nil {
			return err
		}
	}

	for e.nextIndex < len(e.requests) || e.ongoing > 0 {
		if e.ongoing < e.config.Concurrency {
			if err := e.enqueuePendingRequests(); err != nil {
				return err
			}
		}

		if err := e.handleCompletion(e.driver.Wait()); err != nil {
			return err
		}
		for {
			c, ok := e.driver.Next()
			if !ok {
				break
			}
			if err := e.handleCompletion(c); err != nil {
				return err
			}
		}
	}

	return nil
}

// enqueuePendingRequests dispatches requests while the concurrency budget
// allows, always to the channel with the fewest in-flight requests (lowest
// index wins ties)
func (e *Engine) enqueuePendingRequests() error {
	now := time.Now()
	for e.ongoing < e.config.Concurrency && e.nextIndex < len(e.requests) {
		target := e.leastLoadedChannel()
		r := e.requests[e.nextIndex]
		if err := target.EnqueueRequest(e.driver, now, r.req, r.raw); err != nil {
			return err
		}
		e.nextIndex++
		e.ongoing++
	}
	return nil
}

// leastLoadedChannel returns the channel with the fewest in-flight
// requests; ties resolve to the lowest channel index
func (e *Engine) leastLoadedChannel() *channel.Channel {
	best := e.channels[0]
	for _, ch := range e.channels[1:] {
		if ch.Ongoing() < best.Ongoing() {
			best = ch
		}
	}
	return best
}

// handleCompletion routes one completion to its owning channel and keeps
// the global in-flight counter in sync with the channel's counter
func (e *Engine) handleCompletion(c Completion) error {
	ch := e.channels[c.ChannelID]

	switch c.Op {
	case channel.OpWrite:
		return ch.HandleWriteCompletion(e.driver, c.N, c.Err)
	case channel.OpRead:
		before := ch.Ongoing()
		if err := ch.HandleReadCompletion(e.driver, c.N, c.Err); err != nil {
			return err
		}
		e.ongoing -= before - ch.Ongoing()
		return nil
	default:
		return fmt.Errorf("unknown completion op: %v", c.Op)
	}
}

// Completion is re-exported for readability of the engine's signatures
type Completion = channel.Completion
