package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// clientRunner drives one connection: it keeps up to the pipelining depth
// of requests in flight and correlates every received line back to its
// request. It runs on its own goroutine and owns all of its state.
type clientRunner struct {
	addr   string
	rw     io.ReadWriter
	reader *bufio.Reader

	input <-chan *jsonrpc.Input
	queue *OutputQueue

	pipelining  int
	addMetadata bool

	inputOpen   bool
	outstanding int
	pending     map[jsonrpc.ID]*jsonrpc.Metadata
}

// newClientRunner creates a runner for one established connection
func newClientRunner(addr string, rw io.ReadWriter, input <-chan *jsonrpc.Input, queue *OutputQueue, pipelining int, addMetadata bool) *clientRunner {
	return &clientRunner{
		addr:        addr,
		rw:          rw,
		reader:      bufio.NewReader(rw),
		input:       input,
		queue:       queue,
		pipelining:  pipelining,
		addMetadata: addMetadata,
		inputOpen:   true,
		pending:     make(map[jsonrpc.ID]*jsonrpc.Metadata),
	}
}

// run processes the runner's input channel until it is closed and every
// in-flight request got its response. Reading responses takes priority
// over sending once the pipeline is full.
func (r *clientRunner) run() error {
	for {
		// top up the pipeline without blocking
	fill:
		for r.inputOpen && r.outstanding < r.pipelining {
			select {
			case in, ok := <-r.input:
				if !ok {
					r.inputOpen = false
					break fill
				}
				if err := r.send(in); err != nil {
					return err
				}
			default:
				break fill
			}
		}

		if r.outstanding == 0 {
			if !r.inputOpen {
				return nil
			}
			// nothing in flight, block for the next input
			in, ok := <-r.input
			if !ok {
				r.inputOpen = false
				continue
			}
			if err := r.send(in); err != nil {
				return err
			}
			continue
		}

		line, err := r.reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("failed to read response from '%s': %v", r.addr, err)
		}
		if err := r.handleLine(line[:len(line)-1]); err != nil {
			return err
		}
	}
}

// send writes one input line to the connection and, for non-notifications,
// occupies a pipeline slot and records the correlation metadata
func (r *clientRunner) send(in *jsonrpc.Input) error {
	raw, err := in.Encode()
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(raw)+1)
	line = append(line, raw...)
	line = append(line, '\n')
	if _, err := r.rw.Write(line); err != nil {
		return fmt.Errorf("failed to send request to '%s': %v", r.addr, err)
	}

	if in.IsNotification() {
		return nil
	}

	r.outstanding++
	if r.addMetadata {
		r.pending[*in.FirstID()] = &jsonrpc.Metadata{
			Request:     json.RawMessage(raw),
			Server:      r.addr,
			StartTimeUS: time.Now().UnixMicro(),
		}
	}
	return nil
}

// handleLine correlates one received line and pushes it onto the output
// queue. Responses without an id can only be matched positionally, which
// is unambiguous only at pipelining depth one.
func (r *clientRunner) handleLine(line []byte) error {
	out, err := jsonrpc.ParseOutput(line)
	if err != nil {
		return err
	}

	if r.outstanding == 0 {
		return fmt.Errorf("unexpected message from '%s': %s", r.addr, string(line))
	}
	r.outstanding--

	if r.addMetadata {
		if err := r.attachMetadata(out, line); err != nil {
			return err
		}
	}

	r.queue.Push(out)
	return nil
}

// attachMetadata moves the matching pending metadata onto the output
func (r *clientRunner) attachMetadata(out *jsonrpc.Output, line []byte) error {
	endTime := time.Now().UnixMicro()

	if id := out.FirstID(); id != nil {
		meta, ok := r.pending[*id]
		if !ok {
			// The server answered with an id we never issued; forward
			// the line without metadata rather than dropping it
			return nil
		}
		delete(r.pending, *id)
		meta.EndTimeUS = endTime
		out.Records[0].Metadata = meta
		return nil
	}

	if r.pipelining > 1 {
		return fmt.Errorf("cannot correlate response without id from '%s' at pipelining depth %d: %s",
			r.addr, r.pipelining, string(line))
	}

	for id, meta := range r.pending {
		delete(r.pending, id)
		meta.EndTimeUS = endTime
		out.Records[0].Metadata = meta
		break
	}
	return nil
}
