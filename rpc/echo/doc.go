// Package echo implements a JSON-RPC echo server for development and
// testing. Every valid request is answered with a response whose result
// is the request object itself; notifications get no response; malformed
// lines get an error response with a null id. Batch requests are not
// supported.
//
// The server optionally exposes its counters on a Prometheus-compatible
// metrics endpoint.
package echo
