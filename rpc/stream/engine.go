package stream

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("stream")

const (
	// maxLineSize bounds the length of a single input line
	maxLineSize = 16 * 1024 * 1024

	// distributeRetryDelay is how long the reader sleeps after finding
	// every worker's input queue full
	distributeRetryDelay = 10 * time.Millisecond
)

// runner is one worker driving a single connection (or its dry-run stand-in)
type runner interface {
	run() error
}

// Engine is the streaming engine: it connects one worker per server,
// distributes the request stream round-robin across them and writes
// completed responses in completion order.
type Engine struct {
	config common.CallConfig

	calls       *xsync.Counter
	liveWorkers *xsync.Counter
}

// NewEngine creates a streaming engine for the given configuration
func NewEngine(config common.CallConfig) *Engine {
	return &Engine{
		config:      config,
		calls:       xsync.NewCounter(),
		liveWorkers: xsync.NewCounter(),
	}
}

// Calls returns the number of input lines distributed so far
func (e *Engine) Calls() int64 {
	return e.calls.Value()
}

// Run reads newline-delimited requests from in and writes the responses to
// out. It blocks until the input is exhausted and every worker finished.
func (e *Engine) Run(in io.Reader, out io.Writer) error {
	numWorkers := len(e.config.Servers)

	// Per-worker input queues, sized so the reader stays ahead of the
	// pipelines without buffering the whole input
	inputs := make([]chan *jsonrpc.Input, numWorkers)
	for i := range inputs {
		inputs[i] = make(chan *jsonrpc.Input, 2*e.config.Pipelining+10)
	}

	queue := NewOutputQueue()
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writeOutputs(out, queue)
	}()

	runners, cleanup, err := e.createRunners(inputs, queue)
	if err != nil {
		queue.Close()
		<-writerDone
		return err
	}
	defer cleanup()

	workerErrs := make(chan error, numWorkers)
	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		e.liveWorkers.Inc()
		go func(id int, r runner) {
			defer wg.Done()
			defer e.liveWorkers.Dec()
			if err := r.run(); err != nil {
				Logger.Errorf("Worker %d failed: %v", id, err)
				workerErrs <- err
			}
		}(i, r)
	}

	distErr := e.distribute(in, inputs)

	for _, ch := range inputs {
		close(ch)
	}
	wg.Wait()
	queue.Close()
	writeErr := <-writerDone

	close(workerErrs)
	workerErr := <-workerErrs

	// A worker error is the root cause when distribution gave up because
	// no worker was left alive
	switch {
	case workerErr != nil:
		return workerErr
	case distErr != nil:
		return distErr
	default:
		return writeErr
	}
}

// createRunners builds one runner per server. With dry-run enabled no
// connections are opened; otherwise every server gets a TCP connection
// with Nagle's algorithm disabled.
func (e *Engine) createRunners(inputs []chan *jsonrpc.Input, queue *OutputQueue) ([]runner, func(), error) {
	runners := make([]runner, len(e.config.Servers))
	var conns []net.Conn

	cleanup := func() {
		for _, conn := range conns {
			conn.Close()
		}
	}

	for i, addr := range e.config.Servers {
		if e.config.DryRun {
			runners[i] = newDryRunner(addr, inputs[i], queue, e.config.Pipelining, e.config.AddMetadata)
			continue
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to '%s': %v", addr, err)
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.SetNoDelay(true); err != nil {
				conn.Close()
				cleanup()
				return nil, nil, fmt.Errorf("failed to configure connection to '%s': %v", addr, err)
			}
		}
		conns = append(conns, conn)
		runners[i] = newClientRunner(addr, conn, inputs[i], queue, e.config.Pipelining, e.config.AddMetadata)
	}

	Logger.Infof("Started %d workers (pipelining %d, dry-run %v)",
		len(runners), e.config.Pipelining, e.config.DryRun)
	return runners, cleanup, nil
}

// distribute parses the request stream and hands every line to a worker.
// With preread enabled the whole input is parsed before the first request
// is dispatched, so slow producers do not distort the measurement.
func (e *Engine) distribute(in io.Reader, inputs []chan *jsonrpc.Input) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	// The reader goroutine is the only id issuer
	var nextID int64 = 1
	next := 0

	if e.config.Preread {
		var parsed []*jsonrpc.Input
		for scanner.Scan() {
			input, err := e.parseLine(scanner.Bytes(), &nextID)
			if err != nil {
				return err
			}
			if input != nil {
				parsed = append(parsed, input)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read input: %v", err)
		}
		for _, input := range parsed {
			if err := e.dispatch(input, inputs, &next); err != nil {
				return err
			}
		}
		return nil
	}

	for scanner.Scan() {
		input, err := e.parseLine(scanner.Bytes(), &nextID)
		if err != nil {
			return err
		}
		if input == nil {
			continue
		}
		if err := e.dispatch(input, inputs, &next); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %v", err)
	}
	return nil
}

// parseLine parses one input line, rewriting its ids when metadata
// collection is enabled. Blank lines yield nil.
func (e *Engine) parseLine(line []byte, nextID *int64) (*jsonrpc.Input, error) {
	if len(line) == 0 {
		return nil, nil
	}

	input, err := jsonrpc.ParseInput(line)
	if err != nil {
		return nil, err
	}
	if e.config.AddMetadata {
		input.ReassignIDs(nextID)
	}
	return input, nil
}

// dispatch hands one input to the next worker with queue capacity,
// round-robin. If every queue is full it backs off briefly and retries;
// it fails once no worker is left alive.
func (e *Engine) dispatch(input *jsonrpc.Input, inputs []chan *jsonrpc.Input, next *int) error {
	for {
		if e.liveWorkers.Value() == 0 {
			return fmt.Errorf("all workers failed, aborting")
		}

		for tried := 0; tried < len(inputs); tried++ {
			i := *next % len(inputs)
			*next++
			select {
			case inputs[i] <- input:
				e.calls.Inc()
				return nil
			default:
			}
		}

		time.Sleep(distributeRetryDelay)
	}
}

// writeOutputs drains the output queue onto the result stream, one line
// per completed call. After a sink error the queue is still drained so
// its consumer goroutine can finish.
func writeOutputs(out io.Writer, queue *OutputQueue) error {
	w := bufio.NewWriter(out)

	var writeErr error
	for o := range queue.Recv() {
		if writeErr != nil {
			continue
		}

		data, err := o.Encode()
		if err != nil {
			writeErr = err
			continue
		}
		if _, err := w.Write(data); err != nil {
			writeErr = fmt.Errorf("failed to write results: %v", err)
			continue
		}
		if err := w.WriteByte('\n'); err != nil {
			writeErr = fmt.Errorf("failed to write results: %v", err)
			continue
		}
		// Streaming consumers expect every line as soon as it completes
		if err := w.Flush(); err != nil {
			writeErr = fmt.Errorf("failed to write results: %v", err)
		}
	}
	return writeErr
}
