// Package serverapp is the Pegasus-KV server (spec §4.3): the request
// engine that applies GET/PUT/DEL against the store, drives one hop of
// chain replication per request, samples hot keys, and answers the
// controller's migration fan-out.
//
// A Server is wired to one (rackID, nodeID) in the cluster topology and to
// one internal/transport.Transport; everything else (store, hot-key
// tracker, load window) is private per-process state, the same shape the
// teacher's Node type in cmd/node/main.go wires around a shard map.
package serverapp
