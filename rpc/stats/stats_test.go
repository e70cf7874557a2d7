package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPercentile(t *testing.T) {
	// latencies 1..5 ms: p50 = index floor(0.5*5)=2 -> 3ms, p25 = index 1 -> 2ms
	sorted := []int64{1000, 2000, 3000, 4000, 5000}

	tests := []struct {
		k    int
		want int64
	}{
		{25, 2000},
		{50, 3000},
		{75, 4000},
		{100, 5000}, // clamped to the last sample
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.k); got != tt.want {
			t.Errorf("percentile(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}

	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile of empty input = %d, want 0", got)
	}
}

func TestMaxConcurrency(t *testing.T) {
	tests := []struct {
		name    string
		samples []sample
		want    int
	}{
		{
			name: "two overlap, third is disjoint",
			samples: []sample{
				{StartUS: 0, EndUS: 10},
				{StartUS: 2, EndUS: 12},
				{StartUS: 11, EndUS: 20},
			},
			want: 2,
		},
		{
			name: "touching intervals do not overlap",
			samples: []sample{
				{StartUS: 0, EndUS: 10},
				{StartUS: 10, EndUS: 20},
			},
			want: 1,
		},
		{
			name: "all nested",
			samples: []sample{
				{StartUS: 0, EndUS: 100},
				{StartUS: 10, EndUS: 90},
				{StartUS: 20, EndUS: 80},
			},
			want: 3,
		},
		{
			name: "empty",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxConcurrency(tt.samples); got != tt.want {
				t.Errorf("maxConcurrency = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAccumulator(t *testing.T) {
	t.Run("full report", func(t *testing.T) {
		input := strings.Join([]string{
			`{"jsonrpc":"2.0","result":"a","id":1,"metadata":{"request":{"jsonrpc":"2.0","method":"x","id":1},"server":"a:1","start_time_us":0,"end_time_us":1000000}}`,
			`{"jsonrpc":"2.0","result":"b","id":2,"metadata":{"request":{"jsonrpc":"2.0","method":"x","id":2},"server":"a:1","start_time_us":500000,"end_time_us":2000000}}`,
			`{"jsonrpc":"2.0","error":{"code":-32601,"message":"no such method"},"id":3,"metadata":{"request":{"jsonrpc":"2.0","method":"y","id":3},"server":"b:2","start_time_us":2000000,"end_time_us":3000000}}`,
			`{"jsonrpc":"2.0","result":"c","id":4}`,
		}, "\n") + "\n"

		a := NewAccumulator()
		if err := a.ReadFrom(strings.NewReader(input)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report := a.Finalize()

		if report.Detail.Count.Calls != 4 {
			t.Errorf("expected 4 calls, got %d", report.Detail.Count.Calls)
		}
		if report.Detail.Count.OK != 3 || report.Detail.Count.Error != 1 {
			t.Errorf("expected 3 ok / 1 error, got %d / %d",
				report.Detail.Count.OK, report.Detail.Count.Error)
		}
		if report.Detail.Count.Single != 4 || report.Detail.Count.Batch != 0 {
			t.Errorf("expected 4 single / 0 batch, got %d / %d",
				report.Detail.Count.Single, report.Detail.Count.Batch)
		}
		if report.Detail.Count.NoMetadata != 1 {
			t.Errorf("expected 1 call without metadata, got %d", report.Detail.Count.NoMetadata)
		}

		// elapsed = max(end) - min(start) = 3s - 0s
		if report.Elapsed != 3.0 {
			t.Errorf("expected elapsed 3.0, got %v", report.Elapsed)
		}
		if report.RPS != 1.0 {
			t.Errorf("expected 1 rps, got %v", report.RPS)
		}

		// latencies: 1s, 1.5s, 1s -> sorted [1, 1, 1.5]
		if report.Detail.Latency.Min != 1.0 || report.Detail.Latency.Max != 1.5 {
			t.Errorf("expected min 1.0 / max 1.5, got %v / %v",
				report.Detail.Latency.Min, report.Detail.Latency.Max)
		}
		if report.Detail.Latency.P50 != 1.0 {
			t.Errorf("expected p50 1.0, got %v", report.Detail.Latency.P50)
		}

		// samples 1 and 2 overlap, sample 3 starts when 2 ends
		if report.Detail.Concurrency.Max != 2 {
			t.Errorf("expected max concurrency 2, got %d", report.Detail.Concurrency.Max)
		}
	})

	t.Run("byte accounting", func(t *testing.T) {
		// request text is exactly 37 bytes
		request := `{"jsonrpc":"2.0","method":"p","id":1}`
		if len(request) != 37 {
			t.Fatalf("test request is %d bytes, want 37", len(request))
		}

		withMetadata := `{"jsonrpc":"2.0","result":null,"id":1,"metadata":{"request":` + request +
			`,"server":"a:1","start_time_us":0,"end_time_us":10}}`

		a := NewAccumulator()
		if err := a.ReadFrom(strings.NewReader(withMetadata + "\n")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.outgoingBytes != 37 {
			t.Errorf("expected 37 outgoing bytes, got %d", a.outgoingBytes)
		}

		// the metadata member must not count towards the incoming bytes
		bare := `{"jsonrpc":"2.0","result":null,"id":1}`
		if a.incomingBytes != int64(len(bare)) {
			t.Errorf("expected %d incoming bytes, got %d", len(bare), a.incomingBytes)
		}

		// without metadata nothing is accounted
		b := NewAccumulator()
		if err := b.ReadFrom(strings.NewReader(bare + "\n")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.outgoingBytes != 0 || b.incomingBytes != 0 {
			t.Errorf("expected no byte accounting, got %d / %d", b.outgoingBytes, b.incomingBytes)
		}
	})

	t.Run("null batch member is an error", func(t *testing.T) {
		a := NewAccumulator()
		if err := a.ReadFrom(strings.NewReader("[null]\n")); err == nil {
			t.Error("expected an error for a null batch member")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		a := NewAccumulator()
		report := a.Finalize()
		if report.Elapsed != 0 || report.RPS != 0 || report.Detail.Concurrency.Max != 0 {
			t.Errorf("expected zero report, got %+v", report)
		}
	})
}

func TestWriteCSV(t *testing.T) {
	input := `{"jsonrpc":"2.0","result":null,"id":1,"metadata":{"request":{"jsonrpc":"2.0","method":"p","id":1},"server":"a:1","start_time_us":100,"end_time_us":350}}` + "\n"

	a := NewAccumulator()
	if err := a.ReadFrom(strings.NewReader(input)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	csvPath := filepath.Join(t.TempDir(), "samples.csv")
	if err := a.WriteCSV(csvPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	file, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("failed to open CSV: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	want := []string{"a:1", "100", "350", "250"}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Errorf("row cell %d = %q, want %q", i, rows[1][i], cell)
		}
	}
}
