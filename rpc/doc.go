// Package rpc contains the JSON-RPC execution engines and their shared
// building blocks. It acts as the protocol and scheduling layer beneath
// the command-line interface.
//
// The package is organized into several subpackages:
//
//   - jsonrpc: The JSON Lines object model - requests, responses, batch
//     inputs and metadata-wrapped output records.
//
//   - common: Configuration structures, address normalization and logging
//     used across the engines.
//
//   - channel: The connection abstraction of the benchmark engine - one
//     buffered TCP connection per channel, driven through a
//     completion-based I/O driver (real sockets or dry-run simulation).
//
//   - bench: The single-threaded event-loop benchmark engine with
//     least-loaded dispatch under a global concurrency budget.
//
//   - stream: The worker-per-connection streaming engine with pipelining
//     and request/response correlation.
//
//   - stats: One-pass aggregation of metadata-wrapped results into
//     throughput, latency percentiles and a maximum-concurrency estimate.
//
//   - echo: An echo server for development and testing.
package rpc
