// Package router implements Pegasus-KV's load-aware placement engine (spec
// §4.2): a djb2 key hash combined with an outstanding-request counter per
// backend node, used to steer each request to a lightly loaded replica of
// the node the hash would otherwise pick.
//
// The Router struct replaces the teacher's global router state (spec §9,
// "Global mutable state in the router") with an encapsulated type: the data
// path holds a reference to a *Router and either takes its lock or uses
// atomics on Load, rather than reaching into package-level variables.
package router
