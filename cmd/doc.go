// Package cmd implements the command-line interface of jrcall, a client
// and benchmark tool for JSON-RPC 2.0 servers speaking the JSON Lines
// framing over TCP.
//
// The package is organized into several subpackages:
//
//   - call: Execute a stream of JSON-RPC calls with pipelined connections
//   - bench: Benchmark servers with the event-driven engine
//   - stats: Aggregate metadata-wrapped results into summary statistics
//   - req: Generate request objects for use with the other commands
//   - echo: Run a JSON-RPC echo server for development and testing
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See jrcall -help for a list of all commands.
package cmd
