// Package jsonrpc implements the JSON-RPC 2.0 object model used on the wire.
// Messages are exchanged as newline-delimited JSON values ("JSON Lines"):
// one request object (or array, for batch calls) per line, one response
// object (or array) per line.
//
// The package focuses on:
//   - Typed request/response objects with validation on parse
//   - The ID discriminated union (number or string), usable as a map key
//     for request/response correlation
//   - Input lines (single request or batch) with ID reassignment support
//   - Output records (response plus optional timing metadata)
//
// A request without an ID is a notification: no response is expected and
// none is awaited.
package jsonrpc
