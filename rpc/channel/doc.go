// Package channel implements the per-connection building blocks of the
// benchmark engine: a non-blocking connection wrapper with buffered partial
// I/O, and the pluggable I/O driver it runs on.
//
// A Channel owns one connection and mediates all byte-level I/O through an
// internal send queue and a receive accumulator. Callers never block on a
// Channel: reads and writes are submitted to an IChannelIODriver and their
// results arrive later as Completion events.
//
// Two driver strategies are provided and selected once at startup:
//
//   - netDriver performs real socket I/O. Each connection is served by one
//     reader and one writer goroutine that execute exactly one submitted
//     operation at a time and post the result onto a shared completion
//     queue. Together with the Channel's in-flight flags this guarantees
//     one outstanding read per channel and at most one outstanding write.
//
//   - simDriver opens no sockets. Written request lines are answered with
//     synthesized responses (result: null), so the whole scheduling and
//     statistics pipeline can be exercised without a live server.
//
// Channels tolerate partial writes (a single enqueue may require multiple
// write completions) and partial reads (a message may arrive across several
// read completions); no bytes are lost or duplicated across the boundaries.
package channel
