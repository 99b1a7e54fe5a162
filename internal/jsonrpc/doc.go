// Package jsonrpc frames JSON-RPC 2.0 traffic exchanged with the sidecar worker.
//
// Every message is one JSON document per line. The Encoder assigns request
// identifiers from its own counter so independent connections never share an
// identifier space, and Classify sorts inbound lines into responses and
// notifications using only the presence of the id and method fields.
package jsonrpc
