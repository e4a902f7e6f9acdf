// Package cluster holds Pegasus-KV's static topology: node addresses, racks,
// and the client/LB/controller endpoints parsed out of a deployment's
// configuration file. Nothing in this package talks to the network — it is
// the shared, immutable data model that the router, server, and controller
// processes all load at startup and never mutate afterward (spec §3, "Node
// address... Immutable after config load").
package cluster
