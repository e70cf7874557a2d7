// Package stats computes summary statistics from metadata-wrapped result
// lines, as produced by the call command with metadata collection enabled.
//
// All aggregation happens in one finalize pass over the collected samples
// (no streaming percentiles): the latency percentiles and the
// maximum-concurrency sweep both require globally sorted data. The
// percentile rule is deterministic (sample at floor(k/100*len), clamped),
// so results are exactly reproducible for a given input.
package stats
