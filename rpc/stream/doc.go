// Package stream implements the worker-per-connection streaming engine
// behind the call command. One goroutine reads the request stream and
// distributes it round-robin across the workers; every worker owns one
// TCP connection and keeps up to the configured pipelining depth of
// requests in flight; a single writer goroutine drains the shared output
// queue so result lines never interleave.
//
// With metadata collection enabled, the reader rewrites all request IDs
// to fresh monotonic integers so that responses can be correlated across
// pipelined requests, and every emitted response carries an injected
// "metadata" member with the original request text, the server address
// and the start/end timestamps of the call.
package stream
