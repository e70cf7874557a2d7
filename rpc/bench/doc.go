// Package bench implements the single-threaded, event-driven benchmark
// engine. One event loop drives all channels through a completion-based
// I/O driver: it dispatches new requests while the global concurrency
// budget allows, waits for at least one I/O completion, routes every
// completion to its owning channel, and repeats until the input is
// exhausted and no request remains in flight.
//
// Requests are dispatched to the channel with the fewest in-flight
// requests, ties broken by the lowest channel index, which makes the load
// balancing deterministic and testable.
//
// After the loop terminates, the received messages of every channel are
// correlated against the dispatched requests by id and emitted as one
// JSON object per call, merging the request and response members with the
// server address, byte sizes and start/end timestamps.
package bench
