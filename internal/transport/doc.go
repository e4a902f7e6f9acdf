// Package transport is Pegasus-KV's UDP data plane. It gives every process
// role (router, server, controller) the same small send/receive surface over
// raw datagrams, so the codec and engine packages never touch a net.Conn
// directly. cmd/client does not use it and opens its own UDP socket.
//
// The package mirrors the shape of torua's HTTP client helpers
// (internal/cluster's PostJSON) but swaps the transport for UDP sockets,
// since nothing in this deployment speaks HTTP: every frame on the wire is
// one of the fixed binary codecs in internal/codec.
package transport
