// Package common provides core data structures and utilities shared across
// the jrcall tool. It defines configuration structures, server address
// handling, and the logging setup used by the other packages.
//
// The package focuses on:
//   - Configuration structures for the call, bench and echo subcommands
//   - Server address normalization (":port" implies the loopback address)
//   - Custom logging implementation integrated with the dragonboat logger
//
// Key Components:
//
//   - CallConfig: Configuration for the streaming call engine, controlling
//     pipelining depth, metadata collection and dry-run execution.
//
//   - BenchConfig: Configuration for the event-loop benchmark engine,
//     controlling the global concurrency budget.
//
//   - EchoConfig: Configuration for the echo server used for manual testing.
//
//   - Logger: Custom logging implementation that integrates with dragonboat's
//     logging system while providing consistent formatting across the tool.
//     All log output goes to stderr; stdout is reserved for JSON Lines data.
package common
