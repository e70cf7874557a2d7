package stats

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("stats")

// maxLineSize bounds the length of a single input line
const maxLineSize = 16 * 1024 * 1024

// sample is the measurement extracted from one metadata-carrying call
type sample struct {
	Server  string
	StartUS int64
	EndUS   int64
}

// LatencyUS returns the duration of the sample in microseconds
func (s sample) LatencyUS() int64 {
	return s.EndUS - s.StartUS
}

// Accumulator collects measurements from a stream of result lines.
// Call Finalize once after the last line to compute the report.
type Accumulator struct {
	calls      int
	ok         int
	errors     int
	batch      int
	single     int
	noMetadata int

	samples       []sample
	outgoingBytes int64
	incomingBytes int64
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// ReadFrom consumes all newline-delimited result lines from r
func (a *Accumulator) ReadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		output, err := jsonrpc.ParseOutput(line)
		if err != nil {
			return err
		}
		if err := a.Add(output); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %v", err)
	}
	return nil
}

// Add records one result line
func (a *Accumulator) Add(output *jsonrpc.Output) error {
	a.calls++
	if output.Batch {
		a.batch++
	} else {
		a.single++
	}
	for _, record := range output.Records {
		if record.IsError() {
			a.errors++
		} else {
			a.ok++
		}
	}

	meta := output.Metadata()
	if meta == nil {
		a.noMetadata++
		return nil
	}

	a.samples = append(a.samples, sample{
		Server:  meta.Server,
		StartUS: meta.StartTimeUS,
		EndUS:   meta.EndTimeUS,
	})
	a.outgoingBytes += int64(len(meta.Request))

	for _, record := range output.Records {
		size, err := record.ResponseSize()
		if err != nil {
			return err
		}
		a.incomingBytes += int64(size)
	}
	return nil
}

// --------------------------------------------------------------------------
// Report
// --------------------------------------------------------------------------

// Report is the aggregated result. Durations are seconds, throughput is
// calls per second, byte rates are bits per second.
type Report struct {
	Elapsed    float64 `json:"elapsed"`
	RPS        float64 `json:"rps"`
	AvgLatency float64 `json:"avg_latency"`
	Detail     Detail  `json:"detail"`
}

type Detail struct {
	Count       CountDetail       `json:"count"`
	Size        SizeDetail        `json:"size"`
	Latency     LatencyDetail     `json:"latency"`
	Concurrency ConcurrencyDetail `json:"concurrency"`
}

type CountDetail struct {
	Calls      int `json:"calls"`
	OK         int `json:"ok"`
	Error      int `json:"error"`
	Batch      int `json:"batch"`
	Single     int `json:"single"`
	NoMetadata int `json:"no_metadata"`
}

type SizeDetail struct {
	OutgoingBytes int64   `json:"outgoing_bytes"`
	IncomingBytes int64   `json:"incoming_bytes"`
	OutgoingBPS   float64 `json:"outgoing_bps"`
	IncomingBPS   float64 `json:"incoming_bps"`
}

type LatencyDetail struct {
	Min float64 `json:"min"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

type ConcurrencyDetail struct {
	Max int `json:"max"`
}

// Finalize sorts the collected samples and computes the report
func (a *Accumulator) Finalize() *Report {
	report := &Report{
		Detail: Detail{
			Count: CountDetail{
				Calls:      a.calls,
				OK:         a.ok,
				Error:      a.errors,
				Batch:      a.batch,
				Single:     a.single,
				NoMetadata: a.noMetadata,
			},
			Size: SizeDetail{
				OutgoingBytes: a.outgoingBytes,
				IncomingBytes: a.incomingBytes,
			},
			Concurrency: ConcurrencyDetail{Max: maxConcurrency(a.samples)},
		},
	}

	if len(a.samples) == 0 {
		return report
	}

	var minStart, maxEnd int64
	latencies := make([]int64, len(a.samples))
	var latencySum int64
	for i, s := range a.samples {
		if i == 0 || s.StartUS < minStart {
			minStart = s.StartUS
		}
		if s.EndUS > maxEnd {
			maxEnd = s.EndUS
		}
		latencies[i] = s.LatencyUS()
		latencySum += latencies[i]
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	elapsed := secondsFromMicros(maxEnd - minStart)
	report.Elapsed = elapsed
	if elapsed > 0 {
		report.RPS = float64(len(a.samples)) / elapsed
		report.Detail.Size.OutgoingBPS = float64(a.outgoingBytes) * 8 / elapsed
		report.Detail.Size.IncomingBPS = float64(a.incomingBytes) * 8 / elapsed
	}

	report.AvgLatency = secondsFromMicros(latencySum / int64(len(latencies)))
	report.Detail.Latency = LatencyDetail{
		Min: secondsFromMicros(latencies[0]),
		P25: secondsFromMicros(percentile(latencies, 25)),
		P50: secondsFromMicros(percentile(latencies, 50)),
		P75: secondsFromMicros(percentile(latencies, 75)),
		Max: secondsFromMicros(latencies[len(latencies)-1]),
		Avg: secondsFromMicros(latencySum / int64(len(latencies))),
	}

	Logger.Infof("Aggregated %d calls (%d samples with metadata)", a.calls, len(a.samples))
	return report
}

// percentile returns the sample at index floor(k/100*len), clamped.
// The input must be sorted.
func percentile(sorted []int64, k int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := k * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// maxConcurrency runs the interval-overlap sweep: with the samples sorted
// by start time, each sample overlaps every earlier sample whose end time
// is strictly greater than its own start time
func maxConcurrency(samples []sample) int {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartUS < sorted[j].StartUS })

	max := 0
	for i := range sorted {
		overlapping := 1
		for j := 0; j < i; j++ {
			if sorted[j].EndUS > sorted[i].StartUS {
				overlapping++
			}
		}
		if overlapping > max {
			max = overlapping
		}
	}
	return max
}

// secondsFromMicros converts a microsecond count to seconds
func secondsFromMicros(us int64) float64 {
	return float64(us) / 1e6
}
