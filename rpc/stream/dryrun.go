package stream

import (
	"encoding/json"
	"time"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// dryCall is one synthesized in-flight call of the dry-run runner
type dryCall struct {
	out  *jsonrpc.Output
	meta *jsonrpc.Metadata
}

// dryRunner mimics the clientRunner without opening a connection: every
// request is answered with a synthesized null result carrying the
// request's id. The pipelining depth is honored, so timing and ordering
// behave like a real run against an infinitely fast server.
type dryRunner struct {
	addr  string
	input <-chan *jsonrpc.Input
	queue *OutputQueue

	pipelining  int
	addMetadata bool

	inflight []dryCall
}

// newDryRunner creates a dry-run stand-in for one connection
func newDryRunner(addr string, input <-chan *jsonrpc.Input, queue *OutputQueue, pipelining int, addMetadata bool) *dryRunner {
	return &dryRunner{
		addr:        addr,
		input:       input,
		queue:       queue,
		pipelining:  pipelining,
		addMetadata: addMetadata,
	}
}

// run consumes the input channel until it is closed, then drains the
// synthesized pipeline
func (r *dryRunner) run() error {
	for in := range r.input {
		if err := r.accept(in); err != nil {
			return err
		}
	}

	for len(r.inflight) > 0 {
		r.complete()
	}
	return nil
}

// accept synthesizes the response for one input and completes the oldest
// in-flight call once the pipeline is full
func (r *dryRunner) accept(in *jsonrpc.Input) error {
	raw, err := in.Encode()
	if err != nil {
		return err
	}

	if in.IsNotification() {
		return nil
	}

	var records []*jsonrpc.ResponseRecord
	for _, req := range in.Requests {
		if req.ID == nil {
			continue
		}
		records = append(records, &jsonrpc.ResponseRecord{
			Response: *jsonrpc.NewResultResponse(req.ID, nil),
		})
	}

	call := dryCall{out: &jsonrpc.Output{Records: records, Batch: in.Batch}}
	if r.addMetadata {
		call.meta = &jsonrpc.Metadata{
			Request:     json.RawMessage(raw),
			Server:      r.addr,
			StartTimeUS: time.Now().UnixMicro(),
		}
	}

	if len(r.inflight) >= r.pipelining {
		r.complete()
	}
	r.inflight = append(r.inflight, call)
	return nil
}

// complete finishes the oldest in-flight call and pushes its output
func (r *dryRunner) complete() {
	call := r.inflight[0]
	r.inflight = r.inflight[1:]

	if call.meta != nil {
		call.meta.EndTimeUS = time.Now().UnixMicro()
		call.out.Records[0].Metadata = call.meta
	}
	r.queue.Push(call.out)
}
